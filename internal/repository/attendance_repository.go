package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/voice-attendance-api/internal/models"
)

const dateLayout = "2006-01-02"

// AttendanceRepository is the storage side of the attendance ledger.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Insert stores the event unless one already exists for the same student and
// calendar date. It reports whether a row was written. The check and the
// insert are a single statement guarded by the (student_id, calendar_date)
// unique key.
func (r *AttendanceRepository) Insert(ctx context.Context, event *models.AttendanceEvent) (bool, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	const query = `INSERT INTO attendance (id, student_id, name, class_id, section, calendar_date, occurred_at, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (student_id, calendar_date) DO NOTHING RETURNING id`
	var insertedID string
	err := r.db.QueryRowxContext(ctx, query,
		event.ID,
		event.StudentID,
		event.DisplayName,
		event.ClassID,
		event.Section,
		event.CalendarDate.Format(dateLayout),
		event.OccurredAt,
		event.Status,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert attendance: %w", err)
	}
	return true, nil
}

// List returns events matching the filter, newest first.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEvent, error) {
	where, args := attendanceWhere("a.", filter)
	query := fmt.Sprintf(`SELECT a.id, a.student_id, a.name, a.class_id, c.name AS class_name, a.section, a.calendar_date, a.occurred_at, a.status
FROM attendance a
LEFT JOIN classes c ON c.id = a.class_id
WHERE %s
ORDER BY a.occurred_at DESC`, where)

	events := []models.AttendanceEvent{}
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return events, nil
}

// DeleteMany removes events matching the filter and returns the count.
func (r *AttendanceRepository) DeleteMany(ctx context.Context, filter models.AttendanceFilter) (int64, error) {
	where, args := attendanceWhere("", filter)
	query := fmt.Sprintf("DELETE FROM attendance WHERE %s", where)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete attendance: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete attendance rows affected: %w", err)
	}
	return count, nil
}

func attendanceWhere(alias string, filter models.AttendanceFilter) (string, []interface{}) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("%sclass_id = $%d", alias, len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Section != "" {
		where = append(where, fmt.Sprintf("%ssection = $%d", alias, len(args)+1))
		args = append(args, filter.Section)
	}
	if filter.Range != nil {
		where = append(where, fmt.Sprintf("%scalendar_date >= $%d", alias, len(args)+1))
		args = append(args, filter.Range.From.Format(dateLayout))
		where = append(where, fmt.Sprintf("%scalendar_date < $%d", alias, len(args)+1))
		args = append(args, filter.Range.To.Format(dateLayout))
	}
	return strings.Join(where, " AND "), args
}
