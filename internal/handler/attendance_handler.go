package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/voice-attendance-api/internal/dto"
	"github.com/noah-isme/voice-attendance-api/internal/models"
	"github.com/noah-isme/voice-attendance-api/internal/service"
	"github.com/noah-isme/voice-attendance-api/internal/voice"
	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
	"github.com/noah-isme/voice-attendance-api/pkg/response"
)

const queryDateLayout = "2006-01-02"

type attendanceService interface {
	IdentifyAndMark(ctx context.Context, req dto.IdentifyRequest, audio voice.Audio) (*dto.IdentifyResponse, error)
	MarkManual(ctx context.Context, req dto.ManualMarkRequest) (*models.MarkResult, error)
	List(ctx context.Context, req dto.AttendanceListRequest) ([]models.AttendanceEvent, error)
	Clear(ctx context.Context, req dto.ClearAttendanceRequest) (int64, error)
}

type attendanceExporter interface {
	Attendance(ctx context.Context, req dto.AttendanceListRequest, format string) (*service.ExportFile, error)
}

// AttendanceHandler exposes the attendance ledger.
type AttendanceHandler struct {
	service  attendanceService
	exporter attendanceExporter
	audio    AudioOptions
	loc      *time.Location
}

// NewAttendanceHandler constructs an attendance handler. Query dates are
// interpreted in loc.
func NewAttendanceHandler(svc attendanceService, exporter attendanceExporter, audio AudioOptions, loc *time.Location) *AttendanceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceHandler{service: svc, exporter: exporter, audio: audio, loc: loc}
}

// Identify godoc
// @Summary Identify a speaker and mark them present
// @Description Matches the sample against every enrolled voiceprint. A miss returns matched=false with HTTP 200.
// @Tags Attendance
// @Accept json,mpfd
// @Produce json
// @Param payload body dto.IdentifyRequest false "Scope and raw samples"
// @Param audio formData file false "WAV voice sample"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 408 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /attendance/identify [post]
func (h *AttendanceHandler) Identify(c *gin.Context) {
	var req dto.IdentifyRequest
	audio, err := readAudioRequest(c, &req, h.audio)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.IdentifyAndMark(c.Request.Context(), req, audio)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// Manual godoc
// @Summary Mark a student present manually
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.ManualMarkRequest true "Manual mark payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /attendance/manual [post]
func (h *AttendanceHandler) Manual(c *gin.Context) {
	var req dto.ManualMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid manual mark payload"))
		return
	}
	result, err := h.service.MarkManual(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}

// List godoc
// @Summary List attendance events
// @Tags Attendance
// @Produce json
// @Param class_id query string false "Class ID"
// @Param section query string false "Section"
// @Param from query string false "First day (YYYY-MM-DD), inclusive"
// @Param to query string false "Last day (YYYY-MM-DD), exclusive"
// @Param today query bool false "Only today's events"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	req, err := h.listRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	events, err := h.service.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, events, map[string]interface{}{"count": len(events)})
}

// Clear godoc
// @Summary Delete attendance events of a class
// @Description Without from/to the current day is cleared. Omitting section clears every section of the class.
// @Tags Attendance
// @Produce json
// @Param class_id query string true "Class ID"
// @Param section query string false "Section"
// @Param from query string false "First day (YYYY-MM-DD), inclusive"
// @Param to query string false "Last day (YYYY-MM-DD), exclusive"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance [delete]
func (h *AttendanceHandler) Clear(c *gin.Context) {
	from, to, err := h.dateBounds(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	req := dto.ClearAttendanceRequest{
		ClassID: strings.TrimSpace(c.Query("class_id")),
		Section: strings.TrimSpace(c.Query("section")),
		From:    from,
		To:      to,
	}
	deleted, err := h.service.Clear(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ClearAttendanceResponse{Deleted: deleted})
}

// Export godoc
// @Summary Export attendance events
// @Tags Attendance
// @Produce text/csv,application/pdf
// @Param class_id query string false "Class ID"
// @Param section query string false "Section"
// @Param from query string false "First day (YYYY-MM-DD), inclusive"
// @Param to query string false "Last day (YYYY-MM-DD), exclusive"
// @Param today query bool false "Only today's events"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export is not enabled"))
		return
	}
	req, err := h.listRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.Attendance(c.Request.Context(), req, c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func (h *AttendanceHandler) listRequest(c *gin.Context) (dto.AttendanceListRequest, error) {
	from, to, err := h.dateBounds(c)
	if err != nil {
		return dto.AttendanceListRequest{}, err
	}
	req := dto.AttendanceListRequest{
		ClassID: strings.TrimSpace(c.Query("class_id")),
		Section: strings.TrimSpace(c.Query("section")),
		From:    from,
		To:      to,
	}
	if raw := c.Query("today"); raw != "" {
		today, err := strconv.ParseBool(raw)
		if err != nil {
			return dto.AttendanceListRequest{}, appErrors.Clone(appErrors.ErrValidation, "today must be a boolean")
		}
		req.Today = today
	}
	return req, nil
}

func (h *AttendanceHandler) dateBounds(c *gin.Context) (*time.Time, *time.Time, error) {
	from, err := h.parseDay(c.Query("from"), "from")
	if err != nil {
		return nil, nil, err
	}
	to, err := h.parseDay(c.Query("to"), "to")
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func (h *AttendanceHandler) parseDay(raw, field string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	day, err := time.ParseInLocation(queryDateLayout, raw, h.loc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, field+" must be formatted as YYYY-MM-DD")
	}
	return &day, nil
}
