package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/voice-attendance-api/internal/dto"
	"github.com/noah-isme/voice-attendance-api/internal/models"
	"github.com/noah-isme/voice-attendance-api/internal/service"
	"github.com/noah-isme/voice-attendance-api/internal/voice"
	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
)

type attendanceServiceMock struct {
	identify    dto.IdentifyRequest
	audio       voice.Audio
	identifyRes *dto.IdentifyResponse
	manual      dto.ManualMarkRequest
	manualErr   error
	list        dto.AttendanceListRequest
	clear       dto.ClearAttendanceRequest
}

func (m *attendanceServiceMock) IdentifyAndMark(ctx context.Context, req dto.IdentifyRequest, audio voice.Audio) (*dto.IdentifyResponse, error) {
	m.identify, m.audio = req, audio
	return m.identifyRes, nil
}

func (m *attendanceServiceMock) MarkManual(ctx context.Context, req dto.ManualMarkRequest) (*models.MarkResult, error) {
	m.manual = req
	if m.manualErr != nil {
		return nil, m.manualErr
	}
	return &models.MarkResult{Outcome: models.MarkAlreadyMarkedToday}, nil
}

func (m *attendanceServiceMock) List(ctx context.Context, req dto.AttendanceListRequest) ([]models.AttendanceEvent, error) {
	m.list = req
	return []models.AttendanceEvent{{ID: "e1", StudentID: "S1", Status: models.AttendanceStatusPresentVoice}}, nil
}

func (m *attendanceServiceMock) Clear(ctx context.Context, req dto.ClearAttendanceRequest) (int64, error) {
	m.clear = req
	if req.ClassID == "" {
		return 0, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
	}
	return 3, nil
}

type attendanceExporterMock struct {
	req    dto.AttendanceListRequest
	format string
}

func (m *attendanceExporterMock) Attendance(ctx context.Context, req dto.AttendanceListRequest, format string) (*service.ExportFile, error) {
	m.req, m.format = req, format
	return &service.ExportFile{Filename: "attendance_20240101_080000.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")}, nil
}

func TestAttendanceHandlerIdentifyNoMatchIsOK(t *testing.T) {
	svc := &attendanceServiceMock{identifyRes: &dto.IdentifyResponse{Matched: false, Score: 0.42}}
	handler := NewAttendanceHandler(svc, nil, AudioOptions{ListenTimeout: time.Second}, time.UTC)
	body, _ := json.Marshal(dto.IdentifyRequest{ClassID: "c1", Section: "A", Samples: []float64{0.3}, SampleRate: 8000})
	c, w := newTestContext(http.MethodPost, "/attendance/identify", body)

	handler.Identify(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", svc.identify.ClassID)
	assert.Equal(t, 8000, svc.audio.SampleRate)
	assert.JSONEq(t, `{"matched":false,"score":0.42}`, string(decodeEnvelope(t, w)["data"]))
}

func TestAttendanceHandlerIdentifyStalledBodyTimesOut(t *testing.T) {
	svc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(svc, nil, AudioOptions{ListenTimeout: 20 * time.Millisecond}, time.UTC)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	c, w := newTestContext(http.MethodPost, "/attendance/identify", nil)
	c.Request, _ = http.NewRequest(http.MethodPost, "/attendance/identify", stalledReader{release: release})
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Identify(c)

	assert.Equal(t, http.StatusRequestTimeout, w.Code)
	assert.Equal(t, "CAPTURE_TIMEOUT", errorCode(t, w))
	assert.Empty(t, svc.identify.ClassID)
}

func TestAttendanceHandlerIdentifyClientGone(t *testing.T) {
	svc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(svc, nil, AudioOptions{ListenTimeout: time.Second}, time.UTC)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, w := newTestContext(http.MethodPost, "/attendance/identify", nil)
	c.Request, _ = http.NewRequestWithContext(ctx, http.MethodPost, "/attendance/identify", stalledReader{release: release})
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Identify(c)

	assert.Equal(t, appErrors.StatusClientClosedRequest, w.Code)
	assert.Equal(t, "REQUEST_CANCELLED", errorCode(t, w))
}

func TestAttendanceHandlerManual(t *testing.T) {
	svc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(svc, nil, AudioOptions{}, nil)
	body, _ := json.Marshal(dto.ManualMarkRequest{StudentID: "S1", ClassID: "c1", Section: "A"})
	c, w := newTestContext(http.MethodPost, "/attendance/manual", body)

	handler.Manual(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "S1", svc.manual.StudentID)
	assert.JSONEq(t, `{"outcome":"already_marked_today"}`, string(decodeEnvelope(t, w)["data"]))
}

func TestAttendanceHandlerManualUnknownStudent(t *testing.T) {
	svc := &attendanceServiceMock{manualErr: appErrors.Clone(appErrors.ErrNotFound, "student not found")}
	handler := NewAttendanceHandler(svc, nil, AudioOptions{}, nil)
	body, _ := json.Marshal(dto.ManualMarkRequest{StudentID: "S9", ClassID: "c1", Section: "A"})
	c, w := newTestContext(http.MethodPost, "/attendance/manual", body)

	handler.Manual(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendanceHandlerListParsesDatesInLedgerZone(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	svc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(svc, nil, AudioOptions{}, loc)

	c, w := newTestContext(http.MethodGet, "/attendance?class_id=c1&section=A&from=2024-03-01&to=2024-03-08", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.list.From)
	require.NotNil(t, svc.list.To)
	assert.True(t, svc.list.From.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, loc)))
	assert.True(t, svc.list.To.Equal(time.Date(2024, 3, 8, 0, 0, 0, 0, loc)))
	assert.Equal(t, "c1", svc.list.ClassID)
	assert.False(t, svc.list.Today)
}

func TestAttendanceHandlerListRejectsBadQuery(t *testing.T) {
	handler := NewAttendanceHandler(&attendanceServiceMock{}, nil, AudioOptions{}, nil)

	c, w := newTestContext(http.MethodGet, "/attendance?from=03/01/2024", nil)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/attendance?today=maybe", nil)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerListToday(t *testing.T) {
	svc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(svc, nil, AudioOptions{}, nil)

	c, w := newTestContext(http.MethodGet, "/attendance?today=true", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.list.Today)
	assert.JSONEq(t, `{"count":1}`, string(decodeEnvelope(t, w)["meta"]))
}

func TestAttendanceHandlerClear(t *testing.T) {
	svc := &attendanceServiceMock{}
	handler := NewAttendanceHandler(svc, nil, AudioOptions{}, nil)

	c, w := newTestContext(http.MethodDelete, "/attendance?class_id=c1", nil)
	handler.Clear(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", svc.clear.Section)
	assert.Nil(t, svc.clear.From)
	assert.JSONEq(t, `{"deleted":3}`, string(decodeEnvelope(t, w)["data"]))

	c, w = newTestContext(http.MethodDelete, "/attendance", nil)
	handler.Clear(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerExport(t *testing.T) {
	exporter := &attendanceExporterMock{}
	handler := NewAttendanceHandler(&attendanceServiceMock{}, exporter, AudioOptions{}, nil)

	c, w := newTestContext(http.MethodGet, "/attendance/export?format=pdf&today=1", nil)
	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pdf", exporter.format)
	assert.True(t, exporter.req.Today)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestAttendanceHandlerExportDisabled(t *testing.T) {
	handler := NewAttendanceHandler(&attendanceServiceMock{}, nil, AudioOptions{}, nil)

	c, w := newTestContext(http.MethodGet, "/attendance/export", nil)
	handler.Export(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
