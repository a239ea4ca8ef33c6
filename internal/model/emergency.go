// Package model defines the emergency domain types shared across the service.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Source enumerates where an emergency report entered the system.
type Source string

const (
	SourceWebhook   Source = "webhook-generic"
	SourceVoiceCall Source = "voice-call"
	SourceTest      Source = "test"
)

// Status enumerates the lifecycle states of an emergency record.
// Records move forward through active → dispatching → volunteer_assigned →
// resolved, though any active state may jump directly to resolved. The error
// state is reachable only from ingestion-time enrichment failure.
type Status string

const (
	StatusActive            Status = "active"
	StatusDispatching       Status = "dispatching"
	StatusVolunteerAssigned Status = "volunteer_assigned"
	StatusResolved          Status = "resolved"
	StatusError             Status = "error"
)

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusDispatching, StatusVolunteerAssigned, StatusResolved, StatusError:
		return true
	}
	return false
}

// EmergencyType enumerates the closed set of incident categories.
type EmergencyType string

const (
	TypeLostChild        EmergencyType = "lost_child"
	TypeLostAdult        EmergencyType = "lost_adult"
	TypeMedical          EmergencyType = "medical"
	TypeFire             EmergencyType = "fire"
	TypeCrowd            EmergencyType = "crowd"
	TypeSecurity         EmergencyType = "security"
	TypeWater            EmergencyType = "water"
	TypeGeneralEmergency EmergencyType = "general_emergency"
)

// ValidEmergencyType reports whether t is a known incident category.
func ValidEmergencyType(t EmergencyType) bool {
	switch t {
	case TypeLostChild, TypeLostAdult, TypeMedical, TypeFire, TypeCrowd, TypeSecurity, TypeWater, TypeGeneralEmergency:
		return true
	}
	return false
}

// Priority enumerates urgency levels for an emergency.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityModerate Priority = "moderate"
	PriorityLow      Priority = "low"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityCritical, PriorityModerate, PriorityLow:
		return true
	}
	return false
}

// LocationUnclear is the placeholder used when no location could be derived.
const LocationUnclear = "location_unclear"

// Turn is one utterance in a reported conversation transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EmergencyAnalysis is the structured understanding of an incident, produced
// by enrichment (or its fallback). It is always total: every field holds a
// valid value after Normalize.
type EmergencyAnalysis struct {
	Location          string        `json:"location"`
	EmergencyType     EmergencyType `json:"emergency_type"`
	Priority          Priority      `json:"priority"`
	Summary           string        `json:"summary"`
	Title             string        `json:"title,omitempty"`
	Landmarks         []string      `json:"landmarks,omitempty"`
	PersonDescription string        `json:"person_description,omitempty"`
}

// Normalize coerces out-of-enum or empty fields to safe defaults so that a
// malformed upstream response never reaches the store or a client.
func (a *EmergencyAnalysis) Normalize() {
	a.EmergencyType = EmergencyType(strings.ToLower(strings.TrimSpace(string(a.EmergencyType))))
	if !ValidEmergencyType(a.EmergencyType) {
		a.EmergencyType = TypeGeneralEmergency
	}
	a.Priority = Priority(strings.ToLower(strings.TrimSpace(string(a.Priority))))
	switch a.Priority {
	case "high", "very_high":
		a.Priority = PriorityCritical
	case "medium":
		a.Priority = PriorityModerate
	}
	if !ValidPriority(a.Priority) {
		a.Priority = PriorityModerate
	}
	a.Location = strings.TrimSpace(a.Location)
	if a.Location == "" || strings.EqualFold(a.Location, "unknown") {
		a.Location = LocationUnclear
	}
	if strings.TrimSpace(a.Summary) == "" {
		a.Summary = "analysis unavailable"
	}
	if strings.TrimSpace(a.Title) == "" {
		a.Title = fmt.Sprintf("%s emergency", strings.ReplaceAll(string(a.EmergencyType), "_", " "))
	}
}

// DefaultPriority maps an incident category to its baseline urgency when no
// transcript is available to judge from.
func DefaultPriority(t EmergencyType) Priority {
	switch t {
	case TypeMedical, TypeFire, TypeWater, TypeCrowd:
		return PriorityCritical
	case TypeLostChild, TypeSecurity:
		return PriorityModerate
	default:
		return PriorityLow
	}
}

// EmergencyRecord is one tracked emergency report from creation to resolution.
type EmergencyRecord struct {
	ID                string            `json:"id"`
	Timestamp         time.Time         `json:"timestamp"`
	Source            Source            `json:"source"`
	Conversation      []Turn            `json:"conversation,omitempty"`
	Analysis          EmergencyAnalysis `json:"analysis"`
	Status            Status            `json:"status"`
	AssignedVolunteer string            `json:"assigned_volunteer,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	UpdatedAt         *time.Time        `json:"updated_at,omitempty"`
	ResolvedAt        *time.Time        `json:"resolved_at,omitempty"`
	ResolvedBy        string            `json:"resolved_by,omitempty"`
}
