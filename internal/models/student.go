package models

import "time"

// Student is an enrolled identity with its voiceprint.
type Student struct {
	ID              string     `json:"id"`
	DisplayName     string     `json:"name"`
	ClassID         string     `json:"class_id"`
	Section         string     `json:"section"`
	VoicePrint      VoicePrint `json:"voice_print"`
	VoiceSamplePath *string    `json:"voice_sample_path,omitempty"`
	EnrolledAt      time.Time  `json:"enrolled_at"`
}

// StudentFilter narrows roster listings.
type StudentFilter struct {
	ClassID string
	Section string
}

// ScoredStudent is a nearest-neighbour hit from the vector index.
type ScoredStudent struct {
	StudentID string
	Score     float64
}
