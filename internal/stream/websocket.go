package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/campaign-consult/internal/consult"
	apperrors "github.com/ashureev/campaign-consult/internal/errors"
	"github.com/ashureev/campaign-consult/internal/identity"
	"github.com/ashureev/campaign-consult/internal/metrics"
	"github.com/ashureev/campaign-consult/internal/session"
)

const (
	writeTimeout    = 10 * time.Second
	maxMessageBytes = 16 << 10
)

// Message types.
const (
	TypeStart  = "start"
	TypeAnswer = "answer"
	TypePing   = "ping"
	TypeTurn   = "turn"
	TypeError  = "error"
	TypeClosed = "closed"
	TypePong   = "pong"
)

// inbound is a client message.
type inbound struct {
	Type           string `json:"type"`
	SessionID      string `json:"session_id,omitempty"`
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// turnMessage carries one turn result.
type turnMessage struct {
	Type string `json:"type"`
	*consult.Outcome
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

type closedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// Handler serves /ws/consultations.
type Handler struct {
	svc            *consult.Service
	hub            *Hub
	allowedOrigins []string
	isDev          bool
	metrics        *metrics.Metrics
}

// NewHandler creates a WebSocket handler.
func NewHandler(svc *consult.Service, hub *Hub, allowedOrigins []string, isDev bool, m *metrics.Metrics) *Handler {
	return &Handler{
		svc:            svc,
		hub:            hub,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		metrics:        m,
	}
}

// conn is the state of one accepted connection.
type conn struct {
	ws        *websocket.Conn
	peer      *peer
	sessionID string
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := identity.ClientIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "client_id", clientID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "client_id", clientID)
		return
	}
	ws.SetReadLimit(maxMessageBytes)
	h.metrics.WSOpened()
	defer h.metrics.WSClosed()

	c := &conn{ws: ws, peer: newPeer()}
	client := identity.Client(r, "ws")

	ctx, cancel := context.WithCancel(r.Context())
	msgs := make(chan []byte)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(msgs)
		for {
			_, data, err := ws.Read(ctx)
			if err != nil {
				if websocket.CloseStatus(err) != -1 {
					slog.Debug("WebSocket closed by client", "client_id", clientID)
				} else if ctx.Err() == nil {
					slog.Debug("WebSocket read error", "error", err, "client_id", clientID)
				}
				return
			}
			select {
			case msgs <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	closeReason := "connection ended"
	defer func() {
		if c.sessionID != "" {
			h.hub.Unregister(c.sessionID, c.peer)
		}
		if err := ws.Close(websocket.StatusNormalClosure, closeReason); err != nil {
			slog.Debug("Failed to close websocket", "error", err, "client_id", clientID)
		}
		cancel()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case n := <-c.peer.closed:
			if n.sessionID != c.sessionID {
				continue
			}
			closeReason = "consultation " + n.reason
			h.write(ctx, ws, closedMessage{Type: TypeClosed, SessionID: n.sessionID, Reason: n.reason})
			c.sessionID = ""
			return
		case data, ok := <-msgs:
			if !ok {
				return
			}
			h.handle(ctx, c, client, data)
		}
	}
}

// handle dispatches one client message.
func (h *Handler) handle(ctx context.Context, c *conn, client session.Client, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		h.fail(ctx, c.ws, apperrors.NewInvalidRequest("message must be JSON"))
		return
	}

	switch msg.Type {
	case TypeStart:
		out, err := h.svc.Start(ctx, msg.Message, client)
		if err != nil {
			h.fail(ctx, c.ws, err)
			return
		}
		h.follow(c, out.SessionID)
		h.write(ctx, c.ws, turnMessage{Type: TypeTurn, Outcome: out})
	case TypeAnswer:
		id := msg.SessionID
		if id == "" {
			id = c.sessionID
		}
		if id == "" {
			h.fail(ctx, c.ws, apperrors.NewInvalidRequest("session_id is required"))
			return
		}
		out, err := h.svc.Reply(ctx, id, msg.Message, msg.IdempotencyKey)
		if err != nil {
			h.fail(ctx, c.ws, err)
			return
		}
		h.follow(c, id)
		h.write(ctx, c.ws, turnMessage{Type: TypeTurn, Outcome: out})
	case TypePing:
		h.write(ctx, c.ws, map[string]string{"type": TypePong})
	default:
		h.fail(ctx, c.ws, apperrors.NewInvalidRequest("unknown message type: "+msg.Type))
	}
}

// follow points the connection at sessionID.
func (h *Handler) follow(c *conn, sessionID string) {
	if c.sessionID == sessionID {
		return
	}
	if c.sessionID != "" {
		h.hub.Unregister(c.sessionID, c.peer)
	}
	c.sessionID = sessionID
	h.hub.Register(sessionID, c.peer)
}

func (h *Handler) fail(ctx context.Context, ws *websocket.Conn, err error) {
	cErr := apperrors.As(err)
	if cErr == nil {
		cErr = apperrors.NewInternal(err)
	}
	h.write(ctx, ws, errorMessage{Type: TypeError, Error: cErr.Message, Code: string(cErr.Code)})
}

func (h *Handler) write(ctx context.Context, ws *websocket.Conn, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode WebSocket message", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("WebSocket write error", "error", err)
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}
