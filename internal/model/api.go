package model

import "time"

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// VoiceCallWebhookRequest is the request body for POST /webhook/voice-call.
type VoiceCallWebhookRequest struct {
	ID    string `json:"id,omitempty"`
	Convo struct {
		Data []Turn `json:"data"`
	} `json:"convo"`
}

// GenericWebhookRequest is the request body for POST /webhook/generic.
// Freeform producer payloads carry whatever structured hints they have;
// SourceID and Subtype feed the deduplication policy when present.
type GenericWebhookRequest struct {
	ID          string        `json:"id,omitempty"`
	Type        EmergencyType `json:"type,omitempty"`
	Priority    Priority      `json:"priority,omitempty"`
	Location    string        `json:"location,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	SourceID    string        `json:"source_id,omitempty"`
	Subtype     string        `json:"subtype,omitempty"`
	PeopleCount int           `json:"people_count,omitempty"`
}

// VoiceCallResponse is the success body for POST /webhook/voice-call.
type VoiceCallResponse struct {
	Status      string            `json:"status"`
	EmergencyID string            `json:"emergency_id"`
	Analysis    EmergencyAnalysis `json:"analysis"`
}

// WebhookAccepted is the success body for the generic webhook and test trigger.
type WebhookAccepted struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// WebhookFailure is the 500 body carrying the degraded-but-visible record.
type WebhookFailure struct {
	Status       string           `json:"status"`
	ErrorMessage string           `json:"error"`
	FallbackData *EmergencyRecord `json:"fallback_data,omitempty"`
}

// UpdateStatusRequest is the request body for PUT /emergencies/{id}/status.
type UpdateStatusRequest struct {
	Status      Status `json:"status"`
	VolunteerID string `json:"volunteer_id,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// ResolveRequest is the request body for POST /emergencies/{id}/resolve.
type ResolveRequest struct {
	ResolvedBy string `json:"resolved_by,omitempty"`
}

// AssignVolunteerRequest is the request body for POST /volunteers/{id}/assign.
type AssignVolunteerRequest struct {
	EmergencyID string `json:"emergency_id"`
}

// AnnouncementRequest is the request body for POST /broadcast/announcement.
type AnnouncementRequest struct {
	Message  string   `json:"message"`
	Priority Priority `json:"priority,omitempty"`
}

// DashboardSummary aggregates record counts for GET /dashboard/summary.
type DashboardSummary struct {
	Total            int                   `json:"total"`
	ByStatus         map[Status]int        `json:"by_status"`
	ByType           map[EmergencyType]int `json:"by_type"`
	ByPriority       map[Priority]int      `json:"by_priority"`
	ConnectedClients map[Group]int         `json:"connected_clients"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status            string        `json:"status"`
	ActiveEmergencies int           `json:"active_emergencies"`
	ConnectedClients  map[Group]int `json:"connected_clients"`
}

// StatusResponse is the response for GET /status.
type StatusResponse struct {
	Service           string        `json:"service"`
	Version           string        `json:"version"`
	UptimeSeconds     int64         `json:"uptime_seconds"`
	EnrichmentEnabled bool          `json:"enrichment_enabled"`
	ForwardingEnabled bool          `json:"forwarding_enabled"`
	ConnectedClients  map[Group]int `json:"connected_clients"`
}
