package hub

import (
	"context"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/store"
)

// StoreHook returns a store.Hook that routes record lifecycle events to the
// connected client groups. New alerts go to dashboards, and to volunteers too
// when the priority is critical. Assignments additionally target the assigned
// volunteer's own connection so their device gets the task even if a group
// frame was dropped.
func StoreHook(h *Hub) store.Hook {
	return func(_ context.Context, ev store.Event) {
		switch ev.Kind {
		case store.EventCreated:
			groups := []model.Group{model.GroupDashboard}
			if ev.Record.Analysis.Priority == model.PriorityCritical {
				groups = append(groups, model.GroupVolunteers)
			}
			h.Broadcast(model.NewEnvelope(model.MsgEmergencyAlert, ev.Record), groups...)
		case store.EventStatusUpdated:
			h.Broadcast(model.NewEnvelope(model.MsgEmergencyStatusUpdate, ev.Record),
				model.GroupDashboard, model.GroupVolunteers)
		case store.EventResolved:
			h.Broadcast(model.NewEnvelope(model.MsgEmergencyResolved, ev.Record),
				model.GroupDashboard, model.GroupVolunteers)
		case store.EventVolunteerAssigned:
			env := model.NewEnvelope(model.MsgVolunteerAssigned, ev.Record)
			h.Broadcast(env, model.GroupDashboard)
			if ev.Record.AssignedVolunteer != "" {
				h.SendToVolunteer(ev.Record.AssignedVolunteer, env)
			}
		}
	}
}
