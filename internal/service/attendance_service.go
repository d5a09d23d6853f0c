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

type attendanceMealLogRepository interface {
	List(ctx context.Context, filter models.MealLogFilter) ([]models.MealLog, int, error)
	FindByID(ctx context.Context, id string) (*models.MealLog, error)
	Insert(ctx context.Context, log *models.MealLog) (*models.MealLog, error)
	ToggleAnnul(ctx context.Context, id string) (*models.MealLog, error)
	SetExtra(ctx context.Context, id string, hasExtra bool, notes *string) (*models.MealLog, error)
	Delete(ctx context.Context, id string) error
}

type attendanceSyncer interface {
	Run(ctx context.Context) (*SyncResult, error)
	RunForStudent(ctx context.Context, studentID string) (*SyncResult, error)
}

// AttendanceService coordinates kiosk marking and attendance queries.
// Reads go through the syncer first so subscription gaps are backfilled
// before anyone looks at the data.
type AttendanceService struct {
	repo          attendanceMealLogRepository
	syncer        attendanceSyncer
	validator     *validator.Validate
	logger        *zap.Logger
	nonServiceDay time.Weekday
	now           func() time.Time
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(repo attendanceMealLogRepository, syncer attendanceSyncer, validate *validator.Validate, logger *zap.Logger, nonServiceDay time.Weekday, now func() time.Time) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &AttendanceService{
		repo:          repo,
		syncer:        syncer,
		validator:     validate,
		logger:        logger,
		nonServiceDay: nonServiceDay,
		now:           now,
	}
}

// AttendanceListRequest scopes attendance listing.
type AttendanceListRequest struct {
	StudentID string     `json:"student_id"`
	MealType  string     `json:"meal_type"`
	Status    string     `json:"status"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Unpaid    bool       `json:"unpaid"`
	Page      int        `json:"page"`
	PageSize  int        `json:"page_size"`
	SortOrder string     `json:"sort_order"`
}

// MarkAttendanceRequest is the kiosk marking payload.
type MarkAttendanceRequest struct {
	StudentID string     `json:"student_id" validate:"required"`
	MealType  string     `json:"meal_type" validate:"required"`
	Status    string     `json:"status" validate:"required"`
	Timestamp *time.Time `json:"timestamp"`
	Notes     *string    `json:"notes"`
}

// ExtraMarkRequest toggles the lunch extra flag on a record.
type ExtraMarkRequest struct {
	HasExtra bool    `json:"has_extra"`
	Notes    *string `json:"notes"`
}

// List runs a sync pass and returns attendance records matching the filter.
func (s *AttendanceService) List(ctx context.Context, req AttendanceListRequest) ([]models.MealLog, *models.Pagination, error) {
	if _, err := s.syncer.Run(ctx); err != nil {
		s.logger.Warn("attendance sync failed before listing", zap.Error(err))
	}
	return s.list(ctx, req)
}

// StudentHistory syncs one student and returns that student's records.
func (s *AttendanceService) StudentHistory(ctx context.Context, studentID string, req AttendanceListRequest) ([]models.MealLog, *models.Pagination, error) {
	if _, err := s.syncer.RunForStudent(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		s.logger.Warn("attendance sync failed before history", zap.Error(err), zap.String("student_id", studentID))
	}
	req.StudentID = studentID
	return s.list(ctx, req)
}

func (s *AttendanceService) list(ctx context.Context, req AttendanceListRequest) ([]models.MealLog, *models.Pagination, error) {
	filter := models.MealLogFilter{
		StudentID: req.StudentID,
		DateFrom:  req.DateFrom,
		DateTo:    req.DateTo,
		Unpaid:    req.Unpaid,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortOrder: req.SortOrder,
	}
	if req.MealType != "" {
		meal, ok := models.ParseMealType(req.MealType)
		if !ok {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown meal type")
		}
		filter.MealType = &meal
	}
	if req.Status != "" {
		status := models.MealStatus(req.Status)
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown status")
		}
		filter.Status = &status
	}

	logs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return logs, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Mark records a kiosk check-in. Only Verificado and Aviso can be marked by
// hand; Suscripcion records are reserved for the sync process. Marking on the
// non-service weekday is rejected, that day only accepts extra charges.
func (s *AttendanceService) Mark(ctx context.Context, req MarkAttendanceRequest) (*models.MealLog, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	meal, ok := models.ParseMealType(req.MealType)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown meal type")
	}
	status := models.MealStatus(req.Status)
	if status != models.StatusVerified && status != models.StatusExcused {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be Verificado or Aviso")
	}

	ts := s.now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	if ts.Weekday() == s.nonServiceDay {
		return nil, appErrors.Clone(appErrors.ErrNonServiceDay, "")
	}

	log := &models.MealLog{
		StudentID:  req.StudentID,
		MealType:   meal,
		Status:     status,
		Timestamp:  ts,
		ExtraNotes: req.Notes,
	}
	stored, err := s.repo.Insert(ctx, log)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a record already exists for this meal and day")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attendance")
	}

	s.logger.Info("attendance marked",
		zap.String("student_id", stored.StudentID),
		zap.String("meal_type", string(stored.MealType)),
		zap.String("status", string(stored.Status)),
		zap.String("day", stored.Day()))
	return stored, nil
}

// ToggleAnnul flips a record between annulled and verified.
func (s *AttendanceService) ToggleAnnul(ctx context.Context, id string) (*models.MealLog, error) {
	row, err := s.repo.ToggleAnnul(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle record")
	}
	return row, nil
}

// SetExtra updates the extra portion flag on a record. Only lunch records
// carry extras.
func (s *AttendanceService) SetExtra(ctx context.Context, id string, req ExtraMarkRequest) (*models.MealLog, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load record")
	}
	if existing.MealType != models.MealLunch {
		return nil, appErrors.Clone(appErrors.ErrValidation, "extras can only be attached to lunch records")
	}

	row, err := s.repo.SetExtra(ctx, id, req.HasExtra, req.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update record")
	}
	return row, nil
}

// Delete permanently removes a record.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete record")
	}
	return nil
}
