package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/voice-attendance-api/internal/dto"
	"github.com/noah-isme/voice-attendance-api/internal/models"
	"github.com/noah-isme/voice-attendance-api/internal/repository"
	"github.com/noah-isme/voice-attendance-api/internal/voice"
	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
}

type scopeValidator interface {
	ValidateScope(ctx context.Context, classID, section string) (*models.Class, error)
}

type sampleArchiver interface {
	Archive(ctx context.Context, student models.Student, audio voice.Audio) error
}

// EnrollmentService owns enrolled identities and their voiceprints.
type EnrollmentService struct {
	repo      studentRepository
	classes   scopeValidator
	extractor voice.Extractor
	archiver  sampleArchiver
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService. archiver may be nil when
// samples are not kept.
func NewEnrollmentService(repo studentRepository, classes scopeValidator, extractor voice.Extractor, archiver sampleArchiver, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if extractor == nil {
		extractor = voice.StatsExtractor{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		classes:   classes,
		extractor: extractor,
		archiver:  archiver,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Enroll validates the identity and scope, derives the voiceprint and stores
// the student. Nothing is written when any check fails.
func (s *EnrollmentService) Enroll(ctx context.Context, req dto.EnrollStudentRequest, audio voice.Audio) (*models.Student, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student id must be alphanumeric and name, class and section are required")
	}
	if _, err := s.classes.ValidateScope(ctx, req.ClassID, req.Section); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByID(ctx, req.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateIdentity, "student id "+req.ID+" already enrolled")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Storage(err, "failed to check student id")
	}

	vp, err := s.extractor.Extract(audio.Samples)
	if err != nil {
		return nil, err
	}

	student := &models.Student{
		ID:          req.ID,
		DisplayName: req.Name,
		ClassID:     req.ClassID,
		Section:     req.Section,
		VoicePrint:  vp,
		EnrolledAt:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateIdentity, "student id "+req.ID+" already enrolled")
		}
		return nil, appErrors.Storage(err, "failed to enroll student")
	}

	s.cache.Invalidate(ctx, cacheKeyCandidates)
	s.metrics.RecordEnrollment()
	s.logger.Info("student enrolled",
		zap.String("student_id", student.ID),
		zap.String("class_id", student.ClassID),
		zap.String("section", student.Section),
		zap.Uint("samples", vp.Length),
	)

	if s.archiver != nil {
		if err := s.archiver.Archive(ctx, *student, audio); err != nil {
			s.logger.Warn("voice sample not archived", zap.String("student_id", student.ID), zap.Error(err))
		}
	}
	return student, nil
}

// FindByID returns an enrolled student.
func (s *EnrollmentService) FindByID(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Storage(err, "failed to load student")
	}
	return student, nil
}

// List returns the roster in enrollment order.
func (s *EnrollmentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	if filter.ClassID != "" {
		if _, err := s.classes.ValidateScope(ctx, filter.ClassID, filter.Section); err != nil {
			return nil, err
		}
	}
	students, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list students")
	}
	return students, nil
}

// Candidates returns a point-in-time snapshot of every enrolled voiceprint in
// enrollment order.
func (s *EnrollmentService) Candidates(ctx context.Context) ([]voice.Candidate, error) {
	var cached []voice.Candidate
	if s.cache.Get(ctx, cacheKeyCandidates, &cached) {
		return cached, nil
	}
	students, err := s.repo.List(ctx, models.StudentFilter{})
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load enrolled voiceprints")
	}
	candidates := make([]voice.Candidate, 0, len(students))
	for _, st := range students {
		if !st.VoicePrint.Valid() {
			continue
		}
		candidates = append(candidates, voice.Candidate{StudentID: st.ID, Print: st.VoicePrint})
	}
	s.cache.Set(ctx, cacheKeyCandidates, candidates)
	return candidates, nil
}
