// Package handler provides the HTTP and WebSocket handlers of the coins feature.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"crypto_backend/internal/feature/coins/transport/http/dto"
)

// ListingHandler exposes listing sessions: create, page, refresh, retry, close and stream.
type ListingHandler struct {
	registry *ListingRegistry
	upgrader *websocket.Upgrader
	logger   *slog.Logger
}

func NewListingHandler(registry *ListingRegistry, logger *slog.Logger) *ListingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingHandler{registry: registry, upgrader: NewUpgrader(), logger: logger}
}

// Create opens a listing session.
//
// POST /listings?page_size=20
func (h *ListingHandler) Create(c *gin.Context) {
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "0"))
	if err != nil || pageSize < 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "page_size must be a non-negative integer"})
		return
	}

	id, _, err := h.registry.Open(pageSize)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, dto.CreateListingResponse{ID: id})
}

// Get returns a snapshot of the listing.
//
// GET /listings/:id
func (h *ListingHandler) Get(c *gin.Context) {
	l, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, snapshot(c.Param("id"), l))
}

// More appends the next page to the window; when the store runs out the
// listing fetches from the remote source in the background.
//
// POST /listings/:id/more
func (h *ListingHandler) More(c *gin.Context) {
	l, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := l.LoadMore(c.Request.Context()); err != nil {
		h.logger.Error("load more failed", "listing", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, snapshot(c.Param("id"), l))
}

// Refresh starts a bulk refresh. feedback defaults to true.
//
// POST /listings/:id/refresh?feedback=false
func (h *ListingHandler) Refresh(c *gin.Context) {
	feedback, err := strconv.ParseBool(c.DefaultQuery("feedback", "true"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "feedback must be a boolean"})
		return
	}
	l, ok := h.lookup(c)
	if !ok {
		return
	}
	l.Refresh(feedback)
	c.JSON(http.StatusAccepted, snapshot(c.Param("id"), l))
}

// Retry re-requests the first page.
//
// POST /listings/:id/retry
func (h *ListingHandler) Retry(c *gin.Context) {
	l, ok := h.lookup(c)
	if !ok {
		return
	}
	l.Retry()
	c.JSON(http.StatusAccepted, snapshot(c.Param("id"), l))
}

// Delete stops the auto-refresh and closes the listing.
//
// DELETE /listings/:id
func (h *ListingHandler) Delete(c *gin.Context) {
	if err := h.registry.Close(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// Stream pushes every network status, refresh status and window update of
// the listing until the client disconnects or the listing is closed.
//
// GET /listings/:id/ws
func (h *ListingHandler) Stream(c *gin.Context) {
	l, ok := h.lookup(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already replied.
		h.logger.Warn("websocket upgrade failed", "listing", c.Param("id"), "error", err)
		return
	}
	s := newStream(c.Request.Context(), conn)
	defer s.finish()

	network, stopNetwork := l.Network().Subscribe(0)
	defer stopNetwork()
	refresh, stopRefresh := l.RefreshState().Subscribe(0)
	defer stopRefresh()
	items, stopItems := l.ItemChanges().Subscribe(0)
	defer stopItems()

	for network != nil || refresh != nil || items != nil {
		var msg dto.StreamMessage
		select {
		case <-s.ctx.Done():
			return
		case <-s.ping.C:
			if err := s.keepAlive(); err != nil {
				return
			}
			continue
		case st, ok := <-network:
			if !ok {
				network = nil
				continue
			}
			msg = dto.StreamMessage{Type: dto.MessageNetwork, Status: dto.NewStatusResponse(st, true)}
		case st, ok := <-refresh:
			if !ok {
				refresh = nil
				continue
			}
			msg = dto.StreamMessage{Type: dto.MessageRefresh, Status: dto.NewStatusResponse(st, true)}
		case coins, ok := <-items:
			if !ok {
				items = nil
				continue
			}
			msg = dto.StreamMessage{Type: dto.MessageItems, Items: dto.NewCoinResponses(coins)}
		}
		if err := s.send(msg); err != nil {
			h.logger.Debug("stream write failed", "listing", c.Param("id"), "error", err)
			return
		}
	}
}

func (h *ListingHandler) lookup(c *gin.Context) (Listing, bool) {
	l, err := h.registry.Get(c.Param("id"))
	if errors.Is(err, ErrListingNotFound) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return nil, false
	}
	return l, true
}

func snapshot(id string, l Listing) dto.ListingResponse {
	network, hasNetwork := l.Network().Value()
	refresh, hasRefresh := l.RefreshState().Value()
	return dto.ListingResponse{
		ID:      id,
		Items:   dto.NewCoinResponses(l.Items()),
		Network: dto.NewStatusResponse(network, hasNetwork),
		Refresh: dto.NewStatusResponse(refresh, hasRefresh),
	}
}
