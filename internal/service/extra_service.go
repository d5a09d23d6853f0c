package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/comedorapp/comedor-api/internal/models"
	appErrors "github.com/comedorapp/comedor-api/pkg/errors"
)

type extraRepository interface {
	ListByStudent(ctx context.Context, studentID string, since *time.Time) ([]models.ExtraCharge, error)
	Create(ctx context.Context, extra *models.ExtraCharge) error
	Delete(ctx context.Context, id string) error
}

type extraStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// ExtraService manages ad-hoc extra charges. Extras are the only billable
// item accepted on the non-service weekday.
type ExtraService struct {
	repo      extraRepository
	students  extraStudentRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExtraService constructs the extra charge service.
func NewExtraService(repo extraRepository, students extraStudentRepository, validate *validator.Validate, logger *zap.Logger, now func() time.Time) *ExtraService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &ExtraService{repo: repo, students: students, validator: validate, logger: logger, now: now}
}

// CreateExtraRequest describes a new extra charge.
type CreateExtraRequest struct {
	Title string  `json:"title" validate:"required"`
	Price float64 `json:"price" validate:"required,gt=0"`
}

// ListByStudent returns the student's extras, optionally limited to those
// created on or after since.
func (s *ExtraService) ListByStudent(ctx context.Context, studentID string, since *time.Time) ([]models.ExtraCharge, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	extras, err := s.repo.ListByStudent(ctx, studentID, since)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list extras")
	}
	return extras, nil
}

// Create registers an extra charge for a student.
func (s *ExtraService) Create(ctx context.Context, studentID string, req CreateExtraRequest) (*models.ExtraCharge, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extra payload")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	extra := &models.ExtraCharge{
		StudentID: studentID,
		Title:     req.Title,
		Price:     req.Price,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, extra); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create extra")
	}
	s.logger.Info("extra charge created",
		zap.String("student_id", studentID),
		zap.String("title", extra.Title),
		zap.Float64("price", extra.Price))
	return extra, nil
}

// Delete removes an extra charge.
func (s *ExtraService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "extra charge not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete extra")
	}
	return nil
}
