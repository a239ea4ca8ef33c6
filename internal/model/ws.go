package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Group names a partition of connected clients that broadcasts target.
type Group string

const (
	GroupDashboard  Group = "dashboard"
	GroupVolunteers Group = "volunteers"
	GroupAdmin      Group = "admin"
)

// CoerceGroup maps a connection-time type parameter to a group. Unknown or
// empty values fall back to dashboard so no legitimate client is refused.
func CoerceGroup(s string) Group {
	switch s {
	case "volunteer", "volunteers", "mobile":
		return GroupVolunteers
	case "admin":
		return GroupAdmin
	default:
		return GroupDashboard
	}
}

// Outbound envelope types pushed to connected clients.
const (
	MsgConnectionEstablished = "connection-established"
	MsgEmergencyAlert        = "emergency-alert"
	MsgEmergencyStatusUpdate = "emergency-status-update"
	MsgEmergencyResolved     = "emergency-resolved"
	MsgVolunteerLocation     = "volunteer-location"
	MsgVolunteerAssigned     = "volunteer-assigned"
	MsgAnnouncement          = "announcement"
	MsgPong                  = "pong"
)

// Envelope is the tagged server→client message frame.
type Envelope struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEnvelope stamps a typed frame with the current time.
func NewEnvelope(msgType string, data any) Envelope {
	return Envelope{Type: msgType, Data: data, Timestamp: time.Now().UTC()}
}

// ConnectionEstablished is the payload pushed immediately after connect.
type ConnectionEstablished struct {
	ClientType        Group  `json:"client_type"`
	ClientID          string `json:"client_id,omitempty"`
	ActiveEmergencies int    `json:"active_emergencies"`
}

// LocationPing is a volunteer position report fanned out to dashboards.
type LocationPing struct {
	VolunteerID string  `json:"volunteer_id"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Announcement is an operator broadcast to every connected client.
type Announcement struct {
	Message  string   `json:"message"`
	Priority Priority `json:"priority"`
}

// Inbound client→server messages, decoded once at the connection boundary
// into a closed set of variants. Unknown tags become InboundIgnored rather
// than falling through silently.
type InboundMessage interface {
	inbound()
}

// InboundPing is a liveness probe answered with a pong to the sender only.
type InboundPing struct{}

// InboundLocationUpdate carries a volunteer's position.
type InboundLocationUpdate struct {
	VolunteerID string  `json:"volunteer_id"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// InboundStatusUpdate requests a lifecycle change on a record.
type InboundStatusUpdate struct {
	EmergencyID string `json:"emergency_id"`
	Status      Status `json:"status"`
	VolunteerID string `json:"volunteer_id,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// InboundIgnored marks an unrecognized message kind. Logged, never an error
// to the sender.
type InboundIgnored struct {
	Kind string
}

func (InboundPing) inbound()           {}
func (InboundLocationUpdate) inbound() {}
func (InboundStatusUpdate) inbound()   {}
func (InboundIgnored) inbound()        {}

// DecodeInbound parses a raw client frame into its typed variant.
func DecodeInbound(raw []byte) (InboundMessage, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("model: decode inbound message: %w", err)
	}
	switch probe.Type {
	case "ping":
		return InboundPing{}, nil
	case "volunteer-location-update":
		var m InboundLocationUpdate
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("model: decode location update: %w", err)
		}
		return m, nil
	case "emergency-status-update":
		var m InboundStatusUpdate
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("model: decode status update: %w", err)
		}
		return m, nil
	default:
		return InboundIgnored{Kind: probe.Type}, nil
	}
}
