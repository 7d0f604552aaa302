package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/voice-attendance-api/internal/dto"
	"github.com/noah-isme/voice-attendance-api/internal/models"
	"github.com/noah-isme/voice-attendance-api/internal/service"
	"github.com/noah-isme/voice-attendance-api/internal/voice"
	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
	"github.com/noah-isme/voice-attendance-api/pkg/response"
)

type enrollmentService interface {
	Enroll(ctx context.Context, req dto.EnrollStudentRequest, audio voice.Audio) (*models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
}

type rosterExporter interface {
	Roster(ctx context.Context, filter models.StudentFilter, format string) (*service.ExportFile, error)
}

// StudentHandler exposes enrollment and roster endpoints.
type StudentHandler struct {
	service  enrollmentService
	exporter rosterExporter
	audio    AudioOptions
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(svc enrollmentService, exporter rosterExporter, audio AudioOptions) *StudentHandler {
	return &StudentHandler{service: svc, exporter: exporter, audio: audio}
}

// Enroll godoc
// @Summary Enroll a student with a voice sample
// @Description Accepts JSON with raw samples or multipart/form-data with a WAV file in the "audio" field.
// @Tags Students
// @Accept json,mpfd
// @Produce json
// @Param payload body dto.EnrollStudentRequest false "Enrollment payload"
// @Param audio formData file false "WAV voice sample"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 408 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Enroll(c *gin.Context) {
	var req dto.EnrollStudentRequest
	audio, err := readAudioRequest(c, &req, h.audio)
	if err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.service.Enroll(c.Request.Context(), req, audio)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// List godoc
// @Summary List enrolled students
// @Tags Students
// @Produce json
// @Param class_id query string false "Class ID"
// @Param section query string false "Section"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter, err := studentFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	students, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, students, map[string]interface{}{"count": len(students)})
}

// Get godoc
// @Summary Get an enrolled student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.service.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, student)
}

// Export godoc
// @Summary Export the enrolled roster
// @Tags Students
// @Produce text/csv,application/pdf
// @Param class_id query string false "Class ID"
// @Param section query string false "Section"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /students/export [get]
func (h *StudentHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export is not enabled"))
		return
	}
	filter, err := studentFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exporter.Roster(c.Request.Context(), filter, c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func studentFilter(c *gin.Context) (models.StudentFilter, error) {
	var q dto.StudentListRequest
	if err := c.ShouldBindQuery(&q); err != nil {
		return models.StudentFilter{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid roster filter")
	}
	return models.StudentFilter{ClassID: q.ClassID, Section: q.Section}, nil
}
