package kumbhwatch

// Public boundary types. Standalone structs with no internal imports so
// embedders never reach into internal/*; app.go converts at the boundary.

// Turn is one utterance in a reported conversation transcript.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Analysis is the structured understanding of a reported incident.
// EmergencyType and Priority are free strings here; out-of-enum values are
// normalized internally before anything is stored or broadcast.
type Analysis struct {
	Location          string   `json:"location"`
	EmergencyType     string   `json:"emergency_type"`
	Priority          string   `json:"priority"`
	Summary           string   `json:"summary"`
	Title             string   `json:"title,omitempty"`
	Landmarks         []string `json:"landmarks,omitempty"`
	PersonDescription string   `json:"person_description,omitempty"`
}
