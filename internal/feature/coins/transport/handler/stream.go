package handler

import (
	"context"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"crypto_backend/internal/feature/coins/transport/http/dto"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

// NewUpgrader returns the WebSocket upgrader shared by the stream handlers.
// Origins are not checked; the API carries no credentials.
func NewUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
}

// stream is the write side of one WebSocket connection. Clients only send
// control frames; the read loop cancels ctx once the peer goes away.
type stream struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	ping   *time.Ticker
}

func newStream(parent context.Context, conn *websocket.Conn) *stream {
	ctx, cancel := context.WithCancel(parent)
	s := &stream{conn: conn, ctx: ctx, cancel: cancel, ping: time.NewTicker(pingPeriod)}
	go s.readLoop()
	return s
}

func (s *stream) readLoop() {
	defer s.cancel()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *stream) send(msg dto.StreamMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *stream) keepAlive() error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.PingMessage, nil)
}

// finish sends a normal close frame when the server side ended the stream.
func (s *stream) finish() {
	if s.ctx.Err() == nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	}
	s.cancel()
	s.ping.Stop()
	_ = s.conn.Close()
}
