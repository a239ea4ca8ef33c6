package hub

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/store"
)

// Dispatcher applies group-scoped side effects to messages arriving on an
// established connection. One bad message is logged and dropped; it never
// closes the connection or affects other clients.
type Dispatcher struct {
	hub    *Hub
	store  store.Store
	logger *slog.Logger
}

// NewDispatcher wires the dispatcher into the hub as its message handler.
func NewDispatcher(h *Hub, st store.Store, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{hub: h, store: st, logger: logger}
	h.SetMessageHandler(d.Dispatch)
	return d
}

// Dispatch decodes and routes one raw client frame.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, raw []byte) {
	msg, err := model.DecodeInbound(raw)
	if err != nil {
		d.logger.Warn("dispatch: malformed message", "group", c.Group(), "client_id", c.ID(), "error", err)
		return
	}

	switch m := msg.(type) {
	case model.InboundPing:
		c.SendEnvelope(model.NewEnvelope(model.MsgPong, nil))

	case model.InboundLocationUpdate:
		d.handleLocation(c, m)

	case model.InboundStatusUpdate:
		d.handleStatusUpdate(ctx, c, m)

	case model.InboundIgnored:
		d.logger.Debug("dispatch: ignoring unknown message kind", "kind", m.Kind, "group", c.Group(), "client_id", c.ID())
	}
}

// handleLocation fans a volunteer's position out to dashboards. The sender
// receives nothing back, and only volunteers may report positions.
func (d *Dispatcher) handleLocation(c *Client, m model.InboundLocationUpdate) {
	if c.Group() != model.GroupVolunteers {
		d.logger.Warn("dispatch: location update from non-volunteer", "group", c.Group(), "client_id", c.ID())
		return
	}
	if m.VolunteerID == "" {
		m.VolunteerID = c.ID()
	}
	d.hub.Broadcast(model.NewEnvelope(model.MsgVolunteerLocation, model.LocationPing{
		VolunteerID: m.VolunteerID,
		Latitude:    m.Latitude,
		Longitude:   m.Longitude,
	}), model.GroupDashboard)
}

// handleStatusUpdate mutates the record and lets the store's hooks carry
// the update to dashboards. Volunteers and admins only.
func (d *Dispatcher) handleStatusUpdate(ctx context.Context, c *Client, m model.InboundStatusUpdate) {
	if c.Group() != model.GroupVolunteers && c.Group() != model.GroupAdmin {
		d.logger.Warn("dispatch: status update from unauthorized group", "group", c.Group(), "client_id", c.ID())
		return
	}

	volunteerID := m.VolunteerID
	if volunteerID == "" && c.Group() == model.GroupVolunteers {
		volunteerID = c.ID()
	}

	if _, err := d.store.UpdateStatus(ctx, m.EmergencyID, m.Status, volunteerID, m.Notes); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			d.logger.Warn("dispatch: status update for unknown emergency", "emergency_id", m.EmergencyID)
		case errors.Is(err, store.ErrResolved), errors.Is(err, store.ErrInvalidTransition):
			d.logger.Warn("dispatch: rejected status update", "emergency_id", m.EmergencyID, "status", m.Status, "error", err)
		default:
			d.logger.Error("dispatch: status update failed", "emergency_id", m.EmergencyID, "error", err)
		}
	}
}
