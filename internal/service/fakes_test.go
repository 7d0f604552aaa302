package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/voice-attendance-api/internal/models"
	"github.com/noah-isme/voice-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
)

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, appErrors.FromError(err).Code, err.Error())
}

type fakeClassRepo struct {
	classes   []models.Class
	listCalls int
	err       error
	createErr error
}

func (f *fakeClassRepo) List(ctx context.Context) ([]models.Class, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Class(nil), f.classes...), nil
}

func (f *fakeClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.classes {
		if c.ID == id {
			class := c
			return &class, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, c := range f.classes {
		if c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeClassRepo) Create(ctx context.Context, class *models.Class) error {
	if f.createErr != nil {
		return f.createErr
	}
	if class.ID == "" {
		class.ID = "class-" + class.Name
	}
	f.classes = append(f.classes, *class)
	return nil
}

type fakeStudentRepo struct {
	mu        sync.Mutex
	students  []models.Student
	listCalls int
	err       error
	paths     map[string]string
	pathErr   error
	pathCalls int
}

func (f *fakeStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Student{}
	for _, s := range f.students {
		if filter.ClassID != "" && s.ClassID != filter.ClassID {
			continue
		}
		if filter.Section != "" && s.Section != filter.Section {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, s := range f.students {
		if s.ID == id {
			student := s
			return &student, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) Create(ctx context.Context, student *models.Student) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, s := range f.students {
		if s.ID == student.ID {
			return repository.ErrDuplicate
		}
	}
	f.students = append(f.students, *student)
	return nil
}

func (f *fakeStudentRepo) UpdateSamplePath(ctx context.Context, id, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pathCalls++
	if f.pathErr != nil {
		return f.pathErr
	}
	if f.paths == nil {
		f.paths = map[string]string{}
	}
	f.paths[id] = path
	return nil
}

func (f *fakeStudentRepo) samplePathCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pathCalls
}

func (f *fakeStudentRepo) samplePath(id string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.paths[id]
	return p, ok
}

// fakeAttendanceRepo enforces one event per student and calendar date like
// the storage unique key.
type fakeAttendanceRepo struct {
	events []models.AttendanceEvent
	err    error
}

func (f *fakeAttendanceRepo) Insert(ctx context.Context, event *models.AttendanceEvent) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	day := event.CalendarDate.Format("2006-01-02")
	for _, e := range f.events {
		if e.StudentID == event.StudentID && e.CalendarDate.Format("2006-01-02") == day {
			return false, nil
		}
	}
	if event.ID == "" {
		event.ID = "evt-" + event.StudentID + "-" + day
	}
	f.events = append(f.events, *event)
	return true, nil
}

func (f *fakeAttendanceRepo) matches(e models.AttendanceEvent, filter models.AttendanceFilter) bool {
	if filter.ClassID != "" && e.ClassID != filter.ClassID {
		return false
	}
	if filter.Section != "" && e.Section != filter.Section {
		return false
	}
	if filter.Range != nil {
		day := e.CalendarDate.Format("2006-01-02")
		if day < filter.Range.From.Format("2006-01-02") || day >= filter.Range.To.Format("2006-01-02") {
			return false
		}
	}
	return true
}

func (f *fakeAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []models.AttendanceEvent{}
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.matches(f.events[i], filter) {
			out = append(out, f.events[i])
		}
	}
	return out, nil
}

func (f *fakeAttendanceRepo) DeleteMany(ctx context.Context, filter models.AttendanceFilter) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	kept := f.events[:0]
	var deleted int64
	for _, e := range f.events {
		if f.matches(e, filter) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	f.events = kept
	return deleted, nil
}

type fakeCacheRepo struct {
	values map[string][]byte
}

func newFakeCacheRepo() *fakeCacheRepo {
	return &fakeCacheRepo{values: map[string][]byte{}}
}

func (f *fakeCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := f.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.values[key] = raw
	return nil
}

func (f *fakeCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func newTestClass(id, name string, sections ...string) models.Class {
	return models.Class{ID: id, Name: name, Sections: sections, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}
