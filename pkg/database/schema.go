package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Unique constraint names. Repositories match on these to tell a duplicate
// apart from other constraint violations.
const (
	ConstraintStudentsPK        = "students_pkey"
	ConstraintClassesName       = "classes_name_key"
	ConstraintAttendanceStudent = "attendance_student_day_key"
)

const ddlClasses = `
CREATE TABLE IF NOT EXISTS classes (
    id          TEXT         PRIMARY KEY,
    name        TEXT         NOT NULL,
    sections    TEXT[]       NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    CONSTRAINT classes_name_key UNIQUE (name),
    CONSTRAINT classes_sections_not_empty CHECK (cardinality(sections) > 0)
);
`

const ddlStudents = `
CREATE TABLE IF NOT EXISTS students (
    seq                BIGSERIAL         NOT NULL,
    id                 TEXT              NOT NULL,
    name               TEXT              NOT NULL,
    class_id           TEXT              NOT NULL REFERENCES classes (id),
    section            TEXT              NOT NULL,
    voice_mean         DOUBLE PRECISION  NOT NULL,
    voice_std          DOUBLE PRECISION  NOT NULL,
    voice_length       BIGINT            NOT NULL CHECK (voice_length > 0),
    voice_sample_path  TEXT,
    enrolled_at        TIMESTAMPTZ       NOT NULL DEFAULT now(),
    CONSTRAINT students_pkey PRIMARY KEY (id)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_students_seq ON students (seq);
CREATE INDEX IF NOT EXISTS idx_students_scope ON students (class_id, section);
`

// Calendar dates are derived by the service in the ledger timezone; the
// unique key is what makes concurrent marks for one student and day collapse
// into a single row.
const ddlAttendance = `
CREATE TABLE IF NOT EXISTS attendance (
    id             TEXT         PRIMARY KEY,
    student_id     TEXT         NOT NULL,
    name           TEXT         NOT NULL,
    class_id       TEXT         NOT NULL,
    section        TEXT         NOT NULL,
    calendar_date  DATE         NOT NULL,
    occurred_at    TIMESTAMPTZ  NOT NULL,
    status         TEXT         NOT NULL,
    CONSTRAINT attendance_student_day_key UNIQUE (student_id, calendar_date)
);

CREATE INDEX IF NOT EXISTS idx_attendance_scope
    ON attendance (class_id, section, occurred_at);
`

const ddlVoiceEmbedding = `
CREATE EXTENSION IF NOT EXISTS vector;

ALTER TABLE students ADD COLUMN IF NOT EXISTS voice_embedding vector(3);
`

// MigrateOptions selects optional schema parts.
type MigrateOptions struct {
	// Vector adds the pgvector column used by the pgvector match backend.
	Vector bool
}

type migrationStep struct {
	name string
	ddl  string
}

// Migrate creates the schema if it does not exist. It is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB, opts MigrateOptions) error {
	steps := []migrationStep{
		{"classes", ddlClasses},
		{"students", ddlStudents},
		{"attendance", ddlAttendance},
	}
	if opts.Vector {
		steps = append(steps, migrationStep{"voice_embedding", ddlVoiceEmbedding})
	}

	for _, step := range steps {
		if _, err := db.ExecContext(ctx, step.ddl); err != nil {
			return fmt.Errorf("migrate %s: %w", step.name, err)
		}
	}
	return nil
}
