package rpc

import (
	"context"
	"log/slog"
	"sync"

	"github.com/creachadair/jrpc2"

	"github.com/sandeepkv93/medremind/internal/message"
	"github.com/sandeepkv93/medremind/internal/metrics"
)

// Hub tracks connected surfaces and pushes messages to them.
type Hub struct {
	mu      sync.RWMutex
	servers map[*jrpc2.Server]struct{}
	log     *slog.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		servers: make(map[*jrpc2.Server]struct{}),
		log:     logger,
		metrics: m,
	}
}

func (h *Hub) Register(srv *jrpc2.Server) {
	h.mu.Lock()
	h.servers[srv] = struct{}{}
	n := len(h.servers)
	h.mu.Unlock()
	h.metrics.SetSurfaces(n)
	h.log.Info("surface connected", "surfaces", n)
}

func (h *Hub) Unregister(srv *jrpc2.Server) {
	h.mu.Lock()
	_, known := h.servers[srv]
	delete(h.servers, srv)
	n := len(h.servers)
	h.mu.Unlock()
	h.metrics.SetSurfaces(n)
	if known {
		h.log.Info("surface disconnected", "surfaces", n)
	}
}

func (h *Hub) ActiveSurfaces() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.servers)
}

func (h *Hub) SendPlaySound(ctx context.Context, msg message.PlaySound) (int, error) {
	return h.Broadcast(ctx, msg), nil
}

// Broadcast pushes msg to every surface and returns how many accepted it.
// Surfaces that fail are dropped.
func (h *Hub) Broadcast(ctx context.Context, msg message.Message) int {
	h.mu.RLock()
	servers := make([]*jrpc2.Server, 0, len(h.servers))
	for srv := range h.servers {
		servers = append(servers, srv)
	}
	h.mu.RUnlock()

	var failed []*jrpc2.Server
	reached := 0
	for _, srv := range servers {
		if err := srv.Notify(ctx, string(msg.Type()), msg); err != nil {
			h.log.Warn("push to surface failed", "type", msg.Type(), "err", err)
			failed = append(failed, srv)
			continue
		}
		reached++
	}
	for _, srv := range failed {
		h.Unregister(srv)
	}
	return reached
}
