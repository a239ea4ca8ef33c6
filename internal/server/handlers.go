package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/dedupe"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/enrich"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/forward"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/hub"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/store"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/telemetry"
)

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	store     store.Store
	hub       *hub.Hub
	enricher  *enrich.Service
	dedupe    *dedupe.Policy
	forwarder *forward.Forwarder
	logger    *slog.Logger

	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64

	ingested   metric.Int64Counter
	suppressed metric.Int64Counter
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Dedupe, Forwarder.
type HandlersDeps struct {
	Store     store.Store
	Hub       *hub.Hub
	Enricher  *enrich.Service
	Dedupe    *dedupe.Policy
	Forwarder *forward.Forwarder
	Logger    *slog.Logger

	Version             string
	MaxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	meter := telemetry.Meter("kumbhwatch/server")
	ingested, _ := meter.Int64Counter("kumbhwatch.emergencies.ingested",
		metric.WithDescription("Emergency records created from intake"))
	suppressed, _ := meter.Int64Counter("kumbhwatch.dedupe.suppressed",
		metric.WithDescription("Duplicate alerts suppressed by the cooldown policy"))

	return &Handlers{
		store:               d.Store,
		hub:                 d.Hub,
		enricher:            d.Enricher,
		dedupe:              d.Dedupe,
		forwarder:           d.Forwarder,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		ingested:            ingested,
		suppressed:          suppressed,
	}
}

// countIngested records one created emergency, tagged with its intake
// source.
func (h *Handlers) countIngested(ctx context.Context, source model.Source) {
	if h.ingested != nil {
		h.ingested.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(source))))
	}
}

// writeStoreError maps store sentinels onto API responses.
func (h *Handlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "emergency not found")
	case errors.Is(err, store.ErrResolved):
		writeError(w, r, http.StatusConflict, model.ErrCodeConflict, "emergency is already resolved")
	case errors.Is(err, store.ErrInvalidTransition):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid status")
	default:
		h.logger.Error("store operation failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error")
	}
}

// HandleListEmergencies handles GET /emergencies.
// Optional query filters: status, type, priority.
func (h *Handlers) HandleListEmergencies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recs, err := h.store.List(r.Context(), store.Filter{
		Status:   model.Status(q.Get("status")),
		Type:     model.EmergencyType(q.Get("type")),
		Priority: model.Priority(q.Get("priority")),
	})
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, recs)
}

// HandleGetEmergency handles GET /emergencies/{id}.
func (h *Handlers) HandleGetEmergency(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

// HandleUpdateStatus handles PUT /emergencies/{id}/status.
func (h *Handlers) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes)

	var req model.UpdateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}

	rec, err := h.store.UpdateStatus(r.Context(), r.PathValue("id"), req.Status, req.VolunteerID, req.Notes)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"status": "updated", "emergency": rec})
}

// HandleResolve handles POST /emergencies/{id}/resolve. The body is
// optional; an absent resolved_by is recorded as empty.
func (h *Handlers) HandleResolve(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes)

	var req model.ResolveRequest
	_ = decodeJSON(r, &req)

	rec, err := h.store.Resolve(r.Context(), r.PathValue("id"), req.ResolvedBy)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"status": "resolved", "emergency": rec})
}

// HandleAssignVolunteer handles POST /volunteers/{id}/assign.
func (h *Handlers) HandleAssignVolunteer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes)

	var req model.AssignVolunteerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.EmergencyID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "emergency_id is required")
		return
	}

	volunteerID := r.PathValue("id")
	rec, err := h.store.AssignVolunteer(r.Context(), req.EmergencyID, volunteerID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"status": "assigned", "emergency": rec, "volunteer_id": volunteerID})
}

// HandleAnnouncement handles POST /broadcast/announcement. The message
// fans out to every connected client regardless of group.
func (h *Handlers) HandleAnnouncement(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes)

	var req model.AnnouncementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "message is required")
		return
	}
	if req.Priority == "" {
		req.Priority = model.PriorityModerate
	}

	h.hub.Broadcast(model.NewEnvelope(model.MsgAnnouncement, model.Announcement{
		Message:  req.Message,
		Priority: req.Priority,
	}))
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "broadcast"})
}

// HandleDashboardSummary handles GET /dashboard/summary.
func (h *Handlers) HandleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	summary := h.store.Summary(r.Context())
	summary.ConnectedClients = h.hub.Counts()
	writeJSON(w, r, http.StatusOK, summary)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.HealthResponse{
		Status:            "ok",
		ActiveEmergencies: h.store.ActiveCount(r.Context()),
		ConnectedClients:  h.hub.Counts(),
	})
}

// HandleStatus handles GET /status.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, model.StatusResponse{
		Service:           "kumbhwatch",
		Version:           h.version,
		UptimeSeconds:     int64(time.Since(h.startedAt).Seconds()),
		EnrichmentEnabled: h.enricher.Enabled(),
		ForwardingEnabled: h.forwarder != nil,
		ConnectedClients:  h.hub.Counts(),
	})
}
