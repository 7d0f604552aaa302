package dto

import (
	"time"

	"github.com/noah-isme/voice-attendance-api/internal/models"
)

// IdentifyRequest carries the scope for a voice identification attempt.
type IdentifyRequest struct {
	ClassID    string    `json:"class_id" form:"class_id" validate:"required"`
	Section    string    `json:"section" form:"section" validate:"required"`
	Samples    []float64 `json:"samples" form:"-"`
	SampleRate int       `json:"sample_rate" form:"sample_rate" validate:"gte=0"`
}

// IdentifyResponse reports an identification attempt. Matched is false for
// NoMatch, in which case StudentID and Name are empty and Mark is nil.
type IdentifyResponse struct {
	Matched   bool               `json:"matched"`
	StudentID string             `json:"student_id,omitempty"`
	Name      string             `json:"name,omitempty"`
	Score     float64            `json:"score"`
	Mark      *models.MarkResult `json:"mark,omitempty"`
}

// ManualMarkRequest marks a selected student present.
type ManualMarkRequest struct {
	StudentID string `json:"student_id" validate:"required,alphanum"`
	ClassID   string `json:"class_id" validate:"required"`
	Section   string `json:"section" validate:"required"`
}

// AttendanceListRequest captures ledger query parameters. From and To bound a
// half-open range of calendar days; Today overrides both.
type AttendanceListRequest struct {
	ClassID string
	Section string
	From    *time.Time
	To      *time.Time
	Today   bool
}

// ClearAttendanceRequest scopes a bulk delete. A missing range clears today.
type ClearAttendanceRequest struct {
	ClassID string `validate:"required"`
	Section string
	From    *time.Time
	To      *time.Time
}

// ClearAttendanceResponse returns the number of removed events.
type ClearAttendanceResponse struct {
	Deleted int64 `json:"deleted"`
}

// RawSamples returns the inline samples and their rate.
func (r *IdentifyRequest) RawSamples() ([]float64, int) {
	return r.Samples, r.SampleRate
}
