// Package hub owns the persistent client connections. It classifies each
// connection into a group at connect time, tracks live membership, and fans
// typed messages out to whole audiences with at-most-once, best-effort
// delivery.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/telemetry"
)

// MessageHandler consumes raw frames arriving on a client connection.
type MessageHandler func(ctx context.Context, c *Client, raw []byte)

// ActiveCountFn supplies the live incident count pushed on connect.
type ActiveCountFn func(ctx context.Context) int

// Hub tracks connected clients and their group membership. Connects,
// disconnects, and broadcasts run concurrently; membership is guarded by
// one RWMutex and broadcasts iterate a snapshot.
type Hub struct {
	logger      *slog.Logger
	activeCount ActiveCountFn
	onMessage   MessageHandler

	mu      sync.RWMutex
	clients map[*Client]struct{}
	byGroup map[model.Group]map[*Client]struct{}

	dropped func(group model.Group) // broadcast-drop callback, optional

	sentCounter metric.Int64Counter
	dropCounter metric.Int64Counter
}

// New creates an empty hub. activeCount may be nil; connect pushes then
// report zero active incidents.
func New(logger *slog.Logger, activeCount ActiveCountFn) *Hub {
	meter := telemetry.Meter("kumbhwatch/hub")
	sent, _ := meter.Int64Counter("kumbhwatch.broadcast.sent",
		metric.WithDescription("Broadcast frames delivered to connected clients"))
	drop, _ := meter.Int64Counter("kumbhwatch.broadcast.dropped",
		metric.WithDescription("Broadcast frames dropped for slow clients"))

	return &Hub{
		logger:      logger,
		activeCount: activeCount,
		clients:     make(map[*Client]struct{}),
		byGroup:     make(map[model.Group]map[*Client]struct{}),
		sentCounter: sent,
		dropCounter: drop,
	}
}

// SetMessageHandler wires the inbound dispatcher. Must be called before
// traffic; not safe to change while clients are connected.
func (h *Hub) SetMessageHandler(fn MessageHandler) { h.onMessage = fn }

// SetDropObserver registers a callback invoked whenever a broadcast frame
// is dropped for a slow client.
func (h *Hub) SetDropObserver(fn func(group model.Group)) { h.dropped = fn }

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	g, ok := h.byGroup[c.group]
	if !ok {
		g = make(map[*Client]struct{})
		h.byGroup[c.group] = g
	}
	g[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client connected", "group", c.group, "client_id", c.id, "total", total)
}

// unregister removes the client from membership. Idempotent; safe to call
// from both the read and write pump teardown paths.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	delete(h.byGroup[c.group], c)
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("client disconnected", "group", c.group, "client_id", c.id, "total", total)
}

// Broadcast sends the envelope to every live member of the given groups,
// or to all clients when no group is named. Members whose send buffer is
// full are skipped; one stalled connection never delays the others.
func (h *Hub) Broadcast(env model.Envelope, groups ...model.Group) {
	frame, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("broadcast: marshal envelope", "type", env.Type, "error", err)
		return
	}

	for _, c := range h.snapshot(groups) {
		if c.trySend(frame) {
			if h.sentCounter != nil {
				h.sentCounter.Add(context.Background(), 1,
					metric.WithAttributes(attribute.String("group", string(c.group))))
			}
			continue
		}
		if h.dropCounter != nil {
			h.dropCounter.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("group", string(c.group))))
		}
		if h.dropped != nil {
			h.dropped(c.group)
		}
		h.logger.Warn("broadcast: dropping frame for slow client", "group", c.group, "client_id", c.id, "type", env.Type)
	}
}

// SendToVolunteer delivers an envelope to the volunteer clients with the
// given id. Returns true when at least one matching client was writable.
func (h *Hub) SendToVolunteer(volunteerID string, env model.Envelope) bool {
	frame, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("send: marshal envelope", "type", env.Type, "error", err)
		return false
	}

	sent := false
	for _, c := range h.snapshot([]model.Group{model.GroupVolunteers}) {
		if c.id == volunteerID && c.trySend(frame) {
			sent = true
		}
	}
	return sent
}

// snapshot copies the requested membership under the read lock so the
// send loop runs without holding it.
func (h *Hub) snapshot(groups []model.Group) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(groups) == 0 {
		out := make([]*Client, 0, len(h.clients))
		for c := range h.clients {
			out = append(out, c)
		}
		return out
	}

	var out []*Client
	seen := make(map[*Client]struct{})
	for _, g := range groups {
		for c := range h.byGroup[g] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// Counts returns the live connection count per group.
func (h *Hub) Counts() map[model.Group]int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := map[model.Group]int{
		model.GroupDashboard:  0,
		model.GroupVolunteers: 0,
		model.GroupAdmin:      0,
	}
	for g, members := range h.byGroup {
		counts[g] = len(members)
	}
	return counts
}

// CloseAll disconnects every client. Used at shutdown.
func (h *Hub) CloseAll() {
	for _, c := range h.snapshot(nil) {
		c.Close()
	}
}
