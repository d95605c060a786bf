package usecase

import "errors"

var (
	// ErrNotConnected is reported when a load is requested without network connectivity.
	ErrNotConnected = errors.New("not connected")
	// ErrDisposed is returned by operations on a disposed coordinator.
	ErrDisposed = errors.New("coordinator disposed")
)
