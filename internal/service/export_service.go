package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/voice-attendance-api/internal/dto"
	"github.com/noah-isme/voice-attendance-api/internal/models"
	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
	"github.com/noah-isme/voice-attendance-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var (
	attendanceExportHeaders = []string{"Date", "Class", "Section", "Student ID", "Name", "Status"}
	rosterExportHeaders     = []string{"Student ID", "Name", "Class", "Section", "Enrolled At"}
)

type attendanceLister interface {
	List(ctx context.Context, req dto.AttendanceListRequest) ([]models.AttendanceEvent, error)
}

type rosterLister interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
}

type classLister interface {
	List(ctx context.Context) ([]models.Class, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService flattens ledger and roster views into fixed-column tables.
type ExportService struct {
	attendance attendanceLister
	students   rosterLister
	classes    classLister
	csv        csvRenderer
	pdf        pdfRenderer
	loc        *time.Location
	now        func() time.Time
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(attendance attendanceLister, students rosterLister, classes classLister, loc *time.Location, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		attendance: attendance,
		students:   students,
		classes:    classes,
		csv:        csv,
		pdf:        pdf,
		loc:        loc,
		now:        time.Now,
		logger:     logger,
	}
}

// Attendance renders the events selected by req.
func (s *ExportService) Attendance(ctx context.Context, req dto.AttendanceListRequest, format string) (*ExportFile, error) {
	if err := validateFormat(format); err != nil {
		return nil, err
	}
	events, err := s.attendance.List(ctx, req)
	if err != nil {
		return nil, err
	}

	data := export.Dataset{Headers: attendanceExportHeaders, Rows: make([][]string, 0, len(events))}
	for _, e := range events {
		className := e.ClassID
		if e.ClassName != nil {
			className = *e.ClassName
		}
		data.Rows = append(data.Rows, []string{
			e.CalendarDate.Format("2006-01-02"),
			className,
			e.Section,
			e.StudentID,
			e.DisplayName,
			string(e.Status),
		})
	}
	return s.render(data, format, "attendance", "Attendance Report", scopeSubtitle(req.ClassID, req.Section))
}

// Roster renders the enrolled students matching filter.
func (s *ExportService) Roster(ctx context.Context, filter models.StudentFilter, format string) (*ExportFile, error) {
	if err := validateFormat(format); err != nil {
		return nil, err
	}
	students, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	classes, err := s.classes.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(classes))
	for _, c := range classes {
		names[c.ID] = c.Name
	}

	data := export.Dataset{Headers: rosterExportHeaders, Rows: make([][]string, 0, len(students))}
	for _, st := range students {
		className, ok := names[st.ClassID]
		if !ok {
			className = st.ClassID
		}
		data.Rows = append(data.Rows, []string{
			st.ID,
			st.DisplayName,
			className,
			st.Section,
			st.EnrolledAt.In(s.loc).Format("2006-01-02 15:04:05"),
		})
	}
	return s.render(data, format, "students", "Enrolled Students", scopeSubtitle(filter.ClassID, filter.Section))
}

func (s *ExportService) render(data export.Dataset, format, prefix, title, subtitle string) (*ExportFile, error) {
	stamp := s.now().In(s.loc).Format("20060102_150405")
	file := &ExportFile{Filename: fmt.Sprintf("%s_%s.%s", prefix, stamp, format)}

	var err error
	switch format {
	case ExportFormatPDF:
		file.ContentType = "application/pdf"
		file.Data, err = s.pdf.Render(data, title, subtitle)
	default:
		file.ContentType = "text/csv"
		file.Data, err = s.csv.Render(data)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("export rendered", zap.String("file", file.Filename), zap.Int("rows", len(data.Rows)))
	return file, nil
}

func validateFormat(format string) error {
	switch format {
	case ExportFormatCSV, ExportFormatPDF:
		return nil
	default:
		return appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func scopeSubtitle(classID, section string) string {
	parts := make([]string, 0, 2)
	if classID != "" {
		parts = append(parts, "Class "+classID)
	}
	if section != "" {
		parts = append(parts, "Section "+section)
	}
	return strings.Join(parts, " / ")
}
