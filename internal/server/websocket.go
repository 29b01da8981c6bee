package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tjfontaine/blackjack-advisor/internal/advisor"
	"github.com/tjfontaine/blackjack-advisor/internal/core/domain"
)

const (
	wsReadLimit    = 64 << 10
	wsWriteTimeout = 10 * time.Second
	wsIdleTimeout  = 5 * time.Minute
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// API key auth guards the upgrade; the UI may be served from any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Frame types sent to WebSocket clients.
const (
	FrameDelta          = "delta"
	FrameRecommendation = "recommendation"
	FrameError          = "error"
)

// StreamFrame is one server-to-client WebSocket message.
type StreamFrame struct {
	Type           string                 `json:"type"`
	Text           string                 `json:"text,omitempty"`
	Recommendation *domain.Recommendation `json:"recommendation,omitempty"`
	Error          *ErrorDetail           `json:"error,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(f StreamFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(f)
}

// handleStream upgrades to a WebSocket. Each text message is a
// RecommendRequest; the reply is the stream of model fragments followed by
// the final recommendation.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	c := &wsConn{conn: conn}
	conn.SetReadLimit(wsReadLimit)
	ctx := r.Context()

	for {
		conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", slog.String("error", err.Error()))
			}
			return
		}

		var req RecommendRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if c.send(errorFrame("invalid request body: "+err.Error())) != nil {
				return
			}
			continue
		}
		provider, err := domain.ParseProvider(req.Provider)
		if err != nil {
			if c.send(errorFrame(err.Error())) != nil {
				return
			}
			continue
		}

		rec := h.advisor.Recommend(ctx, req.Snapshot, provider,
			advisor.WithFragmentHandler(func(text string) {
				// Write failures surface on the next read.
				c.send(StreamFrame{Type: FrameDelta, Text: text})
			}))
		if err := c.send(StreamFrame{Type: FrameRecommendation, Recommendation: &rec}); err != nil {
			return
		}
	}
}

func errorFrame(message string) StreamFrame {
	return StreamFrame{Type: FrameError, Error: &ErrorDetail{Type: errorTypeInvalidRequest, Message: message}}
}
