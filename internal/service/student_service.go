package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/comedorapp/comedor-api/internal/models"
	appErrors "github.com/comedorapp/comedor-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

// StudentService manages subscriber records.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// StudentListRequest scopes student listing.
type StudentListRequest struct {
	Search    string `json:"search"`
	Active    *bool  `json:"active"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

// SaveStudentRequest is the create/update payload for a student.
type SaveStudentRequest struct {
	Code            string     `json:"code" validate:"required"`
	FirstName       string     `json:"first_name" validate:"required"`
	LastName        string     `json:"last_name" validate:"required"`
	DNI             string     `json:"dni"`
	Email           string     `json:"email" validate:"omitempty,email"`
	Phone           string     `json:"phone"`
	ParentPhone     string     `json:"parent_phone"`
	Address         string     `json:"address"`
	BirthDate       *time.Time `json:"birth_date"`
	JoinedDate      *time.Time `json:"joined_date"`
	SubscribedMeals []string   `json:"subscribed_meals"`
	Notes           string     `json:"notes"`
	AvatarURL       *string    `json:"avatar_url"`
	Active          *bool      `json:"active"`
}

// List returns students matching the filter with pagination metadata.
func (s *StudentService) List(ctx context.Context, req StudentListRequest) ([]models.Student, *models.Pagination, error) {
	filter := models.StudentFilter{
		Search:    req.Search,
		Active:    req.Active,
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single student.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req SaveStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	meals, err := normalizeMeals(req.SubscribedMeals)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByCode(ctx, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this code already exists")
	}

	student := &models.Student{
		Code:            req.Code,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		DNI:             req.DNI,
		Email:           req.Email,
		Phone:           req.Phone,
		ParentPhone:     req.ParentPhone,
		Address:         req.Address,
		BirthDate:       req.BirthDate,
		JoinedDate:      req.JoinedDate,
		SubscribedMeals: meals,
		Notes:           req.Notes,
		AvatarURL:       req.AvatarURL,
		Active:          true,
	}
	if req.Active != nil {
		student.Active = *req.Active
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student created", zap.String("id", student.ID), zap.String("code", student.Code))
	return student, nil
}

// Update modifies an existing student. Subscription changes affect future
// sync passes only: records already written stay as they are.
func (s *StudentService) Update(ctx context.Context, id string, req SaveStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	meals, err := normalizeMeals(req.SubscribedMeals)
	if err != nil {
		return nil, err
	}

	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	exists, err := s.repo.ExistsByCode(ctx, req.Code, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this code already exists")
	}

	student.Code = req.Code
	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.DNI = req.DNI
	student.Email = req.Email
	student.Phone = req.Phone
	student.ParentPhone = req.ParentPhone
	student.Address = req.Address
	student.BirthDate = req.BirthDate
	student.JoinedDate = req.JoinedDate
	student.SubscribedMeals = meals
	student.Notes = req.Notes
	student.AvatarURL = req.AvatarURL
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Deactivate marks a student inactive. Future sync passes ignore the
// student; nothing already recorded is touched.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

func normalizeMeals(raw []string) (pq.StringArray, error) {
	meals := make(pq.StringArray, 0, len(raw))
	seen := make(map[models.MealType]struct{}, len(raw))
	for _, entry := range raw {
		meal, ok := models.ParseMealType(entry)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown meal type in subscription")
		}
		if _, dup := seen[meal]; dup {
			continue
		}
		seen[meal] = struct{}{}
		meals = append(meals, string(meal))
	}
	return meals, nil
}
