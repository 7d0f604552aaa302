package service

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/voice-attendance-api/internal/dto"
	"github.com/noah-isme/voice-attendance-api/internal/models"
)

type stubAttendanceLister struct {
	events []models.AttendanceEvent
	last   dto.AttendanceListRequest
}

func (s *stubAttendanceLister) List(ctx context.Context, req dto.AttendanceListRequest) ([]models.AttendanceEvent, error) {
	s.last = req
	return s.events, nil
}

type stubClassLister struct {
	classes []models.Class
}

func (s stubClassLister) List(ctx context.Context) ([]models.Class, error) {
	return s.classes, nil
}

func newExportFixture() (*ExportService, *stubAttendanceLister, *fakeStudentRepo) {
	className := "Grade 10"
	day := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	attendance := &stubAttendanceLister{events: []models.AttendanceEvent{
		{StudentID: "S2", DisplayName: "Budi", ClassID: "c1", ClassName: &className, Section: "A", CalendarDate: day, OccurredAt: day.Add(9 * time.Hour), Status: models.AttendanceStatusPresentManual},
		{StudentID: "S1", DisplayName: "Ana", ClassID: "c1", Section: "A", CalendarDate: day, OccurredAt: day.Add(8 * time.Hour), Status: models.AttendanceStatusPresentVoice},
	}}
	students := &fakeStudentRepo{students: []models.Student{
		{ID: "S1", DisplayName: "Ana", ClassID: "c1", Section: "A", EnrolledAt: time.Date(2024, 1, 2, 7, 30, 0, 0, time.UTC)},
	}}
	classes := stubClassLister{classes: []models.Class{newTestClass("c1", "Grade 10", "A")}}
	svc := NewExportService(attendance, students, classes, time.UTC, zap.NewNop(), nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	return svc, attendance, students
}

func TestExportServiceAttendanceCSV(t *testing.T) {
	svc, attendance, _ := newExportFixture()

	file, err := svc.Attendance(context.Background(), dto.AttendanceListRequest{ClassID: "c1", Today: true}, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "attendance_20240110_120000.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, attendance.last.Today)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Class,Section,Student ID,Name,Status", lines[0])
	assert.Equal(t, "2024-01-10,Grade 10,A,S2,Budi,Present (Manual)", lines[1])
	assert.Equal(t, "2024-01-10,c1,A,S1,Ana,Present (Voice)", lines[2])
}

func TestExportServiceRosterPDF(t *testing.T) {
	svc, _, _ := newExportFixture()

	file, err := svc.Roster(context.Background(), models.StudentFilter{}, ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestExportServiceRosterCSV(t *testing.T) {
	svc, _, _ := newExportFixture()

	file, err := svc.Roster(context.Background(), models.StudentFilter{}, ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "Student ID,Name,Class,Section,Enrolled At\nS1,Ana,Grade 10,A,2024-01-02 07:30:00\n", string(file.Data))
}

func TestExportServiceRejectsUnknownFormat(t *testing.T) {
	svc, _, _ := newExportFixture()

	_, err := svc.Attendance(context.Background(), dto.AttendanceListRequest{}, "xlsx")
	requireCode(t, err, "VALIDATION_ERROR")
}
