package models

import "time"

// AttendanceStatus records how presence was established.
type AttendanceStatus string

const (
	AttendanceStatusPresentVoice  AttendanceStatus = "Present (Voice)"
	AttendanceStatusPresentManual AttendanceStatus = "Present (Manual)"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresentVoice, AttendanceStatusPresentManual:
		return true
	default:
		return false
	}
}

// AttendanceEvent is one dated presence record. At most one exists per student and calendar date.
type AttendanceEvent struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	DisplayName  string           `db:"name" json:"name"`
	ClassID      string           `db:"class_id" json:"class_id"`
	ClassName    *string          `db:"class_name" json:"class_name,omitempty"`
	Section      string           `db:"section" json:"section"`
	CalendarDate time.Time        `db:"calendar_date" json:"calendar_date"`
	OccurredAt   time.Time        `db:"occurred_at" json:"occurred_at"`
	Status       AttendanceStatus `db:"status" json:"status"`
}

// DateRange is a half-open [From, To) range of calendar days.
type DateRange struct {
	From time.Time
	To   time.Time
}

// AttendanceFilter scopes ledger queries. Empty fields are not applied.
type AttendanceFilter struct {
	ClassID string
	Section string
	Range   *DateRange
}

// MarkOutcome is the result of a mark request.
type MarkOutcome string

const (
	MarkCreated            MarkOutcome = "created"
	MarkAlreadyMarkedToday MarkOutcome = "already_marked_today"
)

// MarkResult carries the outcome and, when created, the stored event.
type MarkResult struct {
	Outcome MarkOutcome      `json:"outcome"`
	Event   *AttendanceEvent `json:"event,omitempty"`
}
