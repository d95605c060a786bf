package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"crypto_backend/internal/feature/coins/domain/entity"
	"crypto_backend/internal/feature/coins/transport/http/dto"
	"crypto_backend/internal/feature/coins/usecase"
)

// ErrCoinNotFound is returned for a coin that is not in the cache.
var ErrCoinNotFound = errors.New("coin not found")

// DetailService is the part of the cache coordinator the detail endpoints use.
type DetailService interface {
	FindDetail(ctx context.Context, symbol string) (*entity.CoinWithDetail, error)
	UpdateDetail(symbol string)
	WatchDetail(symbol string) (<-chan *entity.CoinWithDetail, func())
}

// DetailHandler serves one coin joined with its daily volumes.
type DetailHandler struct {
	svc       DetailService
	refresher *usecase.AutoRefresher
	upgrader  *websocket.Upgrader
	logger    *slog.Logger
}

// NewDetailHandler returns a DetailHandler. refresher drives the detail
// updates of open streams; nil disables them.
func NewDetailHandler(svc DetailService, refresher *usecase.AutoRefresher, logger *slog.Logger) *DetailHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetailHandler{svc: svc, refresher: refresher, upgrader: NewUpgrader(), logger: logger}
}

// Get returns the cached coin and its volumes and requests fresh volumes.
// With amount set it also simulates buying the coin for that sum.
//
// GET /coins/:name?amount=250
func (h *DetailHandler) Get(c *gin.Context) {
	name := c.Param("name")

	var amount *decimal.Decimal
	if raw := c.Query("amount"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "amount must be a non-negative decimal"})
			return
		}
		amount = &d
	}

	joined, err := h.svc.FindDetail(c.Request.Context(), name)
	if err != nil {
		h.logger.Error("failed to read coin detail", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	if joined == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: ErrCoinNotFound.Error()})
		return
	}

	h.svc.UpdateDetail(name)

	resp := dto.NewDetailResponse(joined)
	if amount != nil {
		qty, err := joined.BuySimulation(*amount)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error()})
			return
		}
		resp.WithSimulation(*amount, qty)
	}
	c.JSON(http.StatusOK, resp)
}

// Stream pushes the joined view after every change and keeps the detail
// auto-refresh running while the client stays connected.
//
// GET /coins/:name/ws
func (h *DetailHandler) Stream(c *gin.Context) {
	name := c.Param("name")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "name", name, "error", err)
		return
	}
	s := newStream(c.Request.Context(), conn)
	defer s.finish()

	values, stopWatch := h.svc.WatchDetail(name)
	defer stopWatch()
	if h.refresher != nil {
		stopRefresh := h.refresher.Start(s.ctx, true, "detail "+name, usecase.DetailJob(h.svc, name))
		defer stopRefresh()
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.ping.C:
			if err := s.keepAlive(); err != nil {
				return
			}
		case v, ok := <-values:
			if !ok {
				return
			}
			if err := s.send(dto.StreamMessage{Type: dto.MessageDetail, Detail: dto.NewDetailResponse(v)}); err != nil {
				h.logger.Debug("stream write failed", "name", name, "error", err)
				return
			}
		}
	}
}
