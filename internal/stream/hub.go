// Package stream serves consultations over WebSocket.
package stream

import (
	"log/slog"
	"sync"

	"github.com/ashureev/campaign-consult/internal/session"
)

// peer is one WebSocket connection as the hub sees it.
type peer struct {
	closed chan closeNotice
}

type closeNotice struct {
	sessionID string
	reason    string
}

func newPeer() *peer {
	return &peer{closed: make(chan closeNotice, 1)}
}

// Hub tracks which connections follow which consultation.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[*peer]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{active: make(map[string]map[*peer]struct{})}
}

// Register attaches a connection to a consultation.
func (h *Hub) Register(sessionID string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[sessionID]; !exists {
		h.active[sessionID] = make(map[*peer]struct{})
	}
	h.active[sessionID][p] = struct{}{}
	slog.Debug("stream registered", "session_id", sessionID)
}

// Unregister detaches a connection from a consultation.
func (h *Hub) Unregister(sessionID string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if peers, ok := h.active[sessionID]; ok {
		delete(peers, p)
		if len(peers) == 0 {
			delete(h.active, sessionID)
		}
	}
}

// Close asks every connection following sessionID to shut down. It never
// blocks on the connections themselves.
func (h *Hub) Close(sessionID, reason string) {
	h.mu.Lock()
	peers := h.active[sessionID]
	delete(h.active, sessionID)
	h.mu.Unlock()

	for p := range peers {
		select {
		case p.closed <- closeNotice{sessionID: sessionID, reason: reason}:
		default:
		}
	}
	if len(peers) > 0 {
		slog.Info("stream closed", "session_id", sessionID, "reason", reason, "connections", len(peers))
	}
}

// Evicted adapts Close to session.EvictHook.
func (h *Hub) Evicted(id string, reason session.EvictReason) {
	h.Close(id, string(reason))
}

// Len returns how many connections follow sessionID.
func (h *Hub) Len(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[sessionID])
}
