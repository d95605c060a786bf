package entity

// StatusKind enumerates the states of a network or refresh operation.
type StatusKind int

const (
	StatusLoading StatusKind = iota + 1
	StatusLoaded
	StatusError
)

// String returns the wire name of the kind.
func (k StatusKind) String() string {
	switch k {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Status is the value carried by network and refresh status signals.
type Status struct {
	Kind    StatusKind
	Message string // set only for StatusError
}

// Loading reports an operation in progress.
func Loading() Status { return Status{Kind: StatusLoading} }

// Loaded reports a completed operation.
func Loaded() Status { return Status{Kind: StatusLoaded} }

// Failed reports a failed operation with a human readable message.
func Failed(msg string) Status { return Status{Kind: StatusError, Message: msg} }

// IsError reports whether s is an error status.
func (s Status) IsError() bool { return s.Kind == StatusError }
