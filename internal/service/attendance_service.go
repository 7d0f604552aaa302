package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/voice-attendance-api/internal/dto"
	"github.com/noah-isme/voice-attendance-api/internal/models"
	"github.com/noah-isme/voice-attendance-api/internal/voice"
	"github.com/noah-isme/voice-attendance-api/pkg/config"
	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
)

type attendanceRepository interface {
	Insert(ctx context.Context, event *models.AttendanceEvent) (bool, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEvent, error)
	DeleteMany(ctx context.Context, filter models.AttendanceFilter) (int64, error)
}

type studentDirectory interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Candidates(ctx context.Context) ([]voice.Candidate, error)
}

type nearestStudentFinder interface {
	Nearest(ctx context.Context, vp models.VoicePrint) (*models.ScoredStudent, error)
}

// AttendanceOptions tunes AttendanceService. Zero values select the in-memory
// matcher, UTC calendar days and the wall clock.
type AttendanceOptions struct {
	Backend   string
	Nearest   nearestStudentFinder
	Extractor voice.Extractor
	Matcher   voice.Matcher
	Location  *time.Location
	Now       func() time.Time
}

// AttendanceService is the attendance ledger: it identifies speakers and
// records at most one presence event per student and calendar day.
type AttendanceService struct {
	repo      attendanceRepository
	classes   scopeValidator
	students  studentDirectory
	nearest   nearestStudentFinder
	backend   string
	extractor voice.Extractor
	matcher   voice.Matcher
	loc       *time.Location
	now       func() time.Time
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, classes scopeValidator, students studentDirectory, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, opts AttendanceOptions) *AttendanceService {
	if opts.Backend == "" {
		opts.Backend = config.MatchBackendMemory
	}
	if opts.Extractor == nil {
		opts.Extractor = voice.StatsExtractor{}
	}
	if opts.Matcher == nil {
		opts.Matcher = voice.CosineMatcher{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		repo:      repo,
		classes:   classes,
		students:  students,
		nearest:   opts.Nearest,
		backend:   opts.Backend,
		extractor: opts.Extractor,
		matcher:   opts.Matcher,
		loc:       opts.Location,
		now:       opts.Now,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// CalendarDay truncates t to midnight in the ledger timezone.
func (s *AttendanceService) CalendarDay(t time.Time) time.Time {
	local := t.In(s.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
}

// Today returns the half-open range covering the current calendar day.
func (s *AttendanceService) Today() models.DateRange {
	day := s.CalendarDay(s.now())
	return models.DateRange{From: day, To: day.AddDate(0, 0, 1)}
}

// MarkPresent records an event unless the student already has one for the
// calendar day of occurredAt.
func (s *AttendanceService) MarkPresent(ctx context.Context, studentID, displayName, classID, section string, occurredAt time.Time, status models.AttendanceStatus) (*models.MarkResult, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported attendance status")
	}
	event := &models.AttendanceEvent{
		StudentID:    studentID,
		DisplayName:  displayName,
		ClassID:      classID,
		Section:      section,
		CalendarDate: s.CalendarDay(occurredAt),
		OccurredAt:   occurredAt.UTC(),
		Status:       status,
	}
	created, err := s.repo.Insert(ctx, event)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to record attendance")
	}

	result := &models.MarkResult{Outcome: models.MarkAlreadyMarkedToday}
	if created {
		result = &models.MarkResult{Outcome: models.MarkCreated, Event: event}
	}
	s.metrics.RecordMark(status, result.Outcome)
	s.logger.Info("attendance mark",
		zap.String("student_id", studentID),
		zap.String("class_id", classID),
		zap.String("section", section),
		zap.String("status", string(status)),
		zap.String("outcome", string(result.Outcome)),
	)
	return result, nil
}

// IdentifyAndMark extracts a voiceprint from audio, searches every enrolled
// student and on a match marks them present in the requested scope. A miss is
// reported with Matched false, not as an error.
func (s *AttendanceService) IdentifyAndMark(ctx context.Context, req dto.IdentifyRequest, audio voice.Audio) (*dto.IdentifyResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "class_id and section are required")
	}
	if _, err := s.classes.ValidateScope(ctx, req.ClassID, req.Section); err != nil {
		return nil, err
	}
	vp, err := s.extractor.Extract(audio.Samples)
	if err != nil {
		return nil, err
	}

	match, err := s.match(ctx, vp)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveIdentification(match.Score, match.Matched)
	if !match.Matched {
		s.logger.Info("no matching voice", zap.String("class_id", req.ClassID), zap.String("section", req.Section))
		return &dto.IdentifyResponse{Matched: false}, nil
	}

	student, err := s.students.FindByID(ctx, match.StudentID)
	if err != nil {
		return nil, err
	}
	mark, err := s.MarkPresent(ctx, student.ID, student.DisplayName, req.ClassID, req.Section, s.now(), models.AttendanceStatusPresentVoice)
	if err != nil {
		return nil, err
	}
	return &dto.IdentifyResponse{
		Matched:   true,
		StudentID: student.ID,
		Name:      student.DisplayName,
		Score:     match.Score,
		Mark:      mark,
	}, nil
}

func (s *AttendanceService) match(ctx context.Context, vp models.VoicePrint) (voice.MatchResult, error) {
	if s.backend == config.MatchBackendPGVector && s.nearest != nil {
		hit, err := s.nearest.Nearest(ctx, vp)
		if err != nil {
			return voice.MatchResult{}, appErrors.Storage(err, "failed to search voiceprints")
		}
		if hit == nil || !voice.Accept(hit.Score) {
			return voice.MatchResult{}, nil
		}
		return voice.MatchResult{StudentID: hit.StudentID, Score: hit.Score, Matched: true}, nil
	}

	candidates, err := s.students.Candidates(ctx)
	if err != nil {
		return voice.MatchResult{}, err
	}
	return s.matcher.Match(vp, candidates), nil
}

// MarkManual marks a student of the selected class and section present.
func (s *AttendanceService) MarkManual(ctx context.Context, req dto.ManualMarkRequest) (*models.MarkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student_id, class_id and section are required")
	}
	if _, err := s.classes.ValidateScope(ctx, req.ClassID, req.Section); err != nil {
		return nil, err
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	if student.ClassID != req.ClassID || student.Section != req.Section {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student "+student.ID+" is not enrolled in the selected class and section")
	}
	return s.MarkPresent(ctx, student.ID, student.DisplayName, req.ClassID, req.Section, s.now(), models.AttendanceStatusPresentManual)
}

// List returns ledger events newest first.
func (s *AttendanceService) List(ctx context.Context, req dto.AttendanceListRequest) ([]models.AttendanceEvent, error) {
	if req.ClassID != "" {
		if _, err := s.classes.ValidateScope(ctx, req.ClassID, req.Section); err != nil {
			return nil, err
		}
	}
	filter := models.AttendanceFilter{ClassID: req.ClassID, Section: req.Section}
	if req.Today {
		today := s.Today()
		filter.Range = &today
	} else {
		rng, err := s.dateRange(req.From, req.To)
		if err != nil {
			return nil, err
		}
		filter.Range = rng
	}

	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list attendance")
	}
	return events, nil
}

// Clear deletes the events of a class, optionally one section, within the
// range. Without a range today's events are cleared.
func (s *AttendanceService) Clear(ctx context.Context, req dto.ClearAttendanceRequest) (int64, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "class_id is required")
	}
	if _, err := s.classes.ValidateScope(ctx, req.ClassID, req.Section); err != nil {
		return 0, err
	}
	rng, err := s.dateRange(req.From, req.To)
	if err != nil {
		return 0, err
	}
	if rng == nil {
		today := s.Today()
		rng = &today
	}

	deleted, err := s.repo.DeleteMany(ctx, models.AttendanceFilter{ClassID: req.ClassID, Section: req.Section, Range: rng})
	if err != nil {
		return 0, appErrors.Storage(err, "failed to clear attendance")
	}
	s.logger.Info("attendance cleared",
		zap.String("class_id", req.ClassID),
		zap.String("section", req.Section),
		zap.Time("from", rng.From),
		zap.Time("to", rng.To),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

// dateRange normalises optional bounds to calendar days. A lone From selects
// that single day.
func (s *AttendanceService) dateRange(from, to *time.Time) (*models.DateRange, error) {
	switch {
	case from == nil && to == nil:
		return nil, nil
	case from == nil:
		return nil, appErrors.Clone(appErrors.ErrValidation, "from is required when to is set")
	}
	start := s.CalendarDay(*from)
	end := start.AddDate(0, 0, 1)
	if to != nil {
		end = s.CalendarDay(*to)
	}
	if !start.Before(end) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be before to")
	}
	return &models.DateRange{From: start, To: end}, nil
}
