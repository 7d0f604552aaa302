package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"

	"github.com/noah-isme/voice-attendance-api/internal/models"
	"github.com/noah-isme/voice-attendance-api/pkg/database"
)

// StudentRepository persists enrolled identities and their voiceprints.
type StudentRepository struct {
	db     *sqlx.DB
	vector bool
}

// NewStudentRepository constructs the repository. When vector is true the
// voiceprint is also written to the pgvector column used by Nearest.
func NewStudentRepository(db *sqlx.DB, vector bool) *StudentRepository {
	return &StudentRepository{db: db, vector: vector}
}

type studentRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	ClassID         string         `db:"class_id"`
	Section         string         `db:"section"`
	VoiceMean       float64        `db:"voice_mean"`
	VoiceStd        float64        `db:"voice_std"`
	VoiceLength     int64          `db:"voice_length"`
	VoiceSamplePath sql.NullString `db:"voice_sample_path"`
	EnrolledAt      time.Time      `db:"enrolled_at"`
}

func (r studentRow) toModel() models.Student {
	s := models.Student{
		ID:          r.ID,
		DisplayName: r.Name,
		ClassID:     r.ClassID,
		Section:     r.Section,
		VoicePrint: models.VoicePrint{
			Mean:   r.VoiceMean,
			Std:    r.VoiceStd,
			Length: uint(r.VoiceLength),
		},
		EnrolledAt: r.EnrolledAt,
	}
	if r.VoiceSamplePath.Valid {
		path := r.VoiceSamplePath.String
		s.VoiceSamplePath = &path
	}
	return s
}

const studentColumns = `id, name, class_id, section, voice_mean, voice_std, voice_length, voice_sample_path, enrolled_at`

// List returns enrolled students in enrollment order.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClassID != "" {
		where = append(where, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Section != "" {
		where = append(where, fmt.Sprintf("section = $%d", len(args)+1))
		args = append(args, filter.Section)
	}
	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY seq ASC", studentColumns, strings.Join(where, " AND "))

	var rows []studentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	students := make([]models.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toModel())
	}
	return students, nil
}

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var row studentRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	student := row.toModel()
	return &student, nil
}

// Create inserts a student. An existing ID yields ErrDuplicate.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.EnrolledAt.IsZero() {
		student.EnrolledAt = time.Now().UTC()
	}
	var samplePath sql.NullString
	if student.VoiceSamplePath != nil {
		samplePath = sql.NullString{String: *student.VoiceSamplePath, Valid: true}
	}

	vp := student.VoicePrint
	args := []interface{}{student.ID, student.DisplayName, student.ClassID, student.Section, vp.Mean, vp.Std, int64(vp.Length), samplePath, student.EnrolledAt}
	query := `INSERT INTO students (id, name, class_id, section, voice_mean, voice_std, voice_length, voice_sample_path, enrolled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if r.vector {
		query = `INSERT INTO students (id, name, class_id, section, voice_mean, voice_std, voice_length, voice_sample_path, enrolled_at, voice_embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		args = append(args, embedding(vp))
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err, database.ConstraintStudentsPK) {
			return fmt.Errorf("create student %s: %w", student.ID, ErrDuplicate)
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Nearest returns the enrolled student whose embedding has the smallest
// cosine distance to vp, earliest enrollment first on ties. It returns nil
// when no embeddings are stored.
func (r *StudentRepository) Nearest(ctx context.Context, vp models.VoicePrint) (*models.ScoredStudent, error) {
	const query = `SELECT id, 1 - (voice_embedding <=> $1) AS score
FROM students
WHERE voice_embedding IS NOT NULL
ORDER BY voice_embedding <=> $1 ASC, seq ASC
LIMIT 1`
	var row struct {
		ID    string          `db:"id"`
		Score sql.NullFloat64 `db:"score"`
	}
	if err := r.db.GetContext(ctx, &row, query, embedding(vp)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("nearest student: %w", err)
	}
	score := row.Score.Float64
	if !row.Score.Valid || math.IsNaN(score) {
		score = 0
	}
	return &models.ScoredStudent{StudentID: row.ID, Score: score}, nil
}

func embedding(vp models.VoicePrint) pgvector.Vector {
	v := vp.Vector()
	return pgvector.NewVector([]float32{float32(v[0]), float32(v[1]), float32(v[2])})
}

// UpdateSamplePath records where the enrollment sample was archived.
func (r *StudentRepository) UpdateSamplePath(ctx context.Context, id, path string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE students SET voice_sample_path = $1 WHERE id = $2`, path, id)
	if err != nil {
		return fmt.Errorf("update sample path: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sample path rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
