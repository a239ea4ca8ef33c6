package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/dedupe"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/enrich"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
)

// HandleVoiceCallWebhook handles POST /webhook/voice-call. The transcript
// is enriched synchronously; the resulting record is stored and the store's
// hooks carry it to the connected audiences. Any processing failure still
// produces a degraded-but-visible record: the caller gets a 500, the
// dashboards get an alert either way.
func (h *Handlers) HandleVoiceCallWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes)

	var req model.VoiceCallWebhookRequest
	if err := decodeJSONLenient(r, &req); err != nil {
		h.failIngestion(w, r, model.SourceVoiceCall, nil, fmt.Sprintf("invalid webhook body: %v", err))
		return
	}

	analysis := h.enricher.Analyze(r.Context(), req.Convo.Data, model.EmergencyAnalysis{})

	rec, err := h.store.Create(r.Context(), model.EmergencyRecord{
		ID:           req.ID,
		Source:       model.SourceVoiceCall,
		Conversation: req.Convo.Data,
		Analysis:     analysis,
	})
	if err != nil {
		h.failIngestion(w, r, model.SourceVoiceCall, req.Convo.Data, fmt.Sprintf("store emergency: %v", err))
		return
	}

	h.countIngested(r.Context(), model.SourceVoiceCall)
	h.forwarder.Send(rec)
	writeJSON(w, r, http.StatusOK, model.VoiceCallResponse{
		Status:      "success",
		EmergencyID: rec.ID,
		Analysis:    rec.Analysis,
	})
}

// HandleGenericWebhook handles POST /webhook/generic. Producers carrying a
// source_id are derived alerts (repeated anomaly detections); those consult
// the deduplication policy before anything is stored or broadcast.
func (h *Handlers) HandleGenericWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBodyBytes)

	var req model.GenericWebhookRequest
	if err := decodeJSONLenient(r, &req); err != nil {
		h.failIngestion(w, r, model.SourceWebhook, nil, fmt.Sprintf("invalid webhook body: %v", err))
		return
	}

	if req.Type == "" {
		req.Type = model.TypeGeneralEmergency
	}

	if h.dedupe != nil && req.SourceID != "" {
		decision := h.dedupe.Decide(dedupe.Candidate{
			Type:        string(req.Type),
			SourceID:    req.SourceID,
			Subtype:     req.Subtype,
			PeopleCount: req.PeopleCount,
		})
		if !decision.Emit {
			if h.suppressed != nil {
				h.suppressed.Add(r.Context(), 1, metric.WithAttributes(attribute.String("type", string(req.Type))))
			}
			h.logger.Info("duplicate alert suppressed",
				"source_id", req.SourceID, "type", req.Type, "subtype", req.Subtype, "reason", decision.Reason)
			writeJSON(w, r, http.StatusOK, map[string]any{
				"status": "suppressed",
				"reason": decision.Reason,
			})
			return
		}
	}

	analysis := enrich.Fallback(nil, model.EmergencyAnalysis{
		Location:      req.Location,
		EmergencyType: req.Type,
		Priority:      req.Priority,
		Summary:       req.Summary,
	})

	rec, err := h.store.Create(r.Context(), model.EmergencyRecord{
		ID:       req.ID,
		Source:   model.SourceWebhook,
		Analysis: analysis,
	})
	if err != nil {
		h.failIngestion(w, r, model.SourceWebhook, nil, fmt.Sprintf("store emergency: %v", err))
		return
	}

	h.countIngested(r.Context(), model.SourceWebhook)
	h.forwarder.Send(rec)
	writeJSON(w, r, http.StatusOK, model.WebhookAccepted{Status: "received", ID: rec.ID})
}

// HandleTestEmergency handles POST /test_emergency. It fabricates a
// realistic lost-child incident so operators can exercise the full
// ingest → store → broadcast path without a real producer.
func (h *Handlers) HandleTestEmergency(w http.ResponseWriter, r *http.Request) {
	turns := []model.Turn{
		{Role: "assistant", Content: "This is the emergency helpline, how can I help?"},
		{Role: "user", Content: "I lost my child near gate 3, she is wearing a red dress"},
	}
	analysis := h.enricher.Analyze(r.Context(), turns, model.EmergencyAnalysis{})

	rec, err := h.store.Create(r.Context(), model.EmergencyRecord{
		Source:       model.SourceTest,
		Conversation: turns,
		Analysis:     analysis,
	})
	if err != nil {
		h.failIngestion(w, r, model.SourceTest, turns, fmt.Sprintf("store emergency: %v", err))
		return
	}

	h.countIngested(r.Context(), model.SourceTest)
	writeJSON(w, r, http.StatusOK, model.WebhookAccepted{Status: "created", ID: rec.ID})
}

// failIngestion implements the degraded failure mode shared by all intake
// endpoints: synthesize a fallback record, store and broadcast it, and
// answer 500 with the record attached. The user-visible outcome of a broken
// ingestion is a degraded alert, never silence.
func (h *Handlers) failIngestion(w http.ResponseWriter, r *http.Request, source model.Source, turns []model.Turn, msg string) {
	h.logger.Error("ingestion failed, emitting fallback record", "source", source, "error", msg,
		"request_id", RequestIDFromContext(r.Context()))

	fallback := model.EmergencyRecord{
		ID:           fmt.Sprintf("emg_%s", uuid.NewString()),
		Timestamp:    time.Now().UTC(),
		Source:       source,
		Conversation: turns,
		Analysis:     enrich.Fallback(turns, model.EmergencyAnalysis{}),
		Status:       model.StatusError,
	}

	stored, err := h.store.Create(r.Context(), fallback)
	if err != nil {
		// Even the fallback could not be stored; push it to dashboards
		// directly so the incident is still visible somewhere.
		h.logger.Error("fallback record could not be stored", "error", err)
		h.hub.Broadcast(model.NewEnvelope(model.MsgEmergencyAlert, fallback), model.GroupDashboard)
		stored = fallback
	} else {
		h.countIngested(r.Context(), source)
	}

	writeJSON(w, r, http.StatusInternalServerError, model.WebhookFailure{
		Status:       "error",
		ErrorMessage: msg,
		FallbackData: &stored,
	})
}
