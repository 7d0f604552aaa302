package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/voice-attendance-api/internal/dto"
	"github.com/noah-isme/voice-attendance-api/internal/models"
	"github.com/noah-isme/voice-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/voice-attendance-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context) ([]models.Class, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, class *models.Class) error
}

// ClassService is the class directory: it defines classes and validates the
// class/section scope used by enrollment and the attendance ledger.
type ClassService struct {
	repo      classRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns every class ordered by creation time.
func (s *ClassService) List(ctx context.Context) ([]models.Class, error) {
	var cached []models.Class
	if s.cache.Get(ctx, cacheKeyClasses, &cached) {
		return cached, nil
	}
	classes, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to list classes")
	}
	s.cache.Set(ctx, cacheKeyClasses, classes)
	return classes, nil
}

// Get returns a class by ID.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Storage(err, "failed to load class")
	}
	return class, nil
}

// SectionsOf returns the ordered sections of a class.
func (s *ClassService) SectionsOf(ctx context.Context, id string) ([]string, error) {
	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return []string(class.Sections), nil
}

// ValidateScope checks that the class exists and owns the section.
func (s *ClassService) ValidateScope(ctx context.Context, classID, section string) (*models.Class, error) {
	if strings.TrimSpace(classID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class_id is required")
	}
	class, err := s.Get(ctx, classID)
	if err != nil {
		return nil, err
	}
	if section != "" && !class.HasSection(section) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section "+section+" does not belong to class "+class.Name)
	}
	return class, nil
}

// Create adds a new class. Sections are trimmed, blank entries dropped and
// duplicates removed keeping first occurrence.
func (s *ClassService) Create(ctx context.Context, req dto.CreateClassRequest) (*models.Class, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Sections = normalizeSections(req.Sections)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "class name and at least one section are required")
	}

	exists, err := s.repo.ExistsByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to check class name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateClass, "class "+req.Name+" already exists")
	}

	class := &models.Class{Name: req.Name, Sections: req.Sections}
	if err := s.repo.Create(ctx, class); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateClass, "class "+req.Name+" already exists")
		}
		return nil, appErrors.Storage(err, "failed to create class")
	}
	s.cache.Invalidate(ctx, cacheKeyClasses)
	s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("name", class.Name), zap.Strings("sections", class.Sections))
	return class, nil
}

func normalizeSections(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
