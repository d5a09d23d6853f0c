package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/comedorapp/comedor-api/internal/models"
	appErrors "github.com/comedorapp/comedor-api/pkg/errors"
)

type billingMealLogRepository interface {
	ListUnpaidByStudent(ctx context.Context, studentID string) ([]models.MealLog, error)
	MarkPaidRange(ctx context.Context, studentID string, from, to time.Time, paymentDate time.Time) (int64, error)
}

type billingExtraRepository interface {
	ListUnpaidByStudent(ctx context.Context, studentID string) ([]models.ExtraCharge, error)
	MarkPaidRange(ctx context.Context, studentID string, from, to time.Time, paymentDate time.Time) (int64, error)
}

type billingStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type billingAuditRepository interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// BillingService derives outstanding balances and settles them. Prices are
// never stored on records; every balance is recomputed from the current rate
// table at read time.
type BillingService struct {
	logs      billingMealLogRepository
	extras    billingExtraRepository
	students  billingStudentRepository
	audit     billingAuditRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewBillingService constructs the billing service.
func NewBillingService(logs billingMealLogRepository, extras billingExtraRepository, students billingStudentRepository, audit billingAuditRepository, validate *validator.Validate, logger *zap.Logger, now func() time.Time) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &BillingService{logs: logs, extras: extras, students: students, audit: audit, validator: validate, logger: logger, now: now}
}

// DebtSummary is a student's outstanding balance with its per-day breakdown.
type DebtSummary struct {
	StudentID   string               `json:"student_id"`
	Days        []DayCharge          `json:"days"`
	Extras      []models.ExtraCharge `json:"extras"`
	MealsTotal  float64              `json:"meals_total"`
	ExtrasTotal float64              `json:"extras_total"`
	Total       float64              `json:"total"`
}

// SettleRequest settles everything unpaid inside the inclusive date range.
type SettleRequest struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required"`
}

// SettleResult reports what a settlement touched.
type SettleResult struct {
	StudentID     string    `json:"student_id"`
	MealsSettled  int64     `json:"meals_settled"`
	ExtrasSettled int64     `json:"extras_settled"`
	AmountSettled float64   `json:"amount_settled"`
	PaymentDate   time.Time `json:"payment_date"`
}

// Debt computes the student's outstanding balance from unpaid chargeable
// records and unpaid extras.
func (s *BillingService) Debt(ctx context.Context, studentID string) (*DebtSummary, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	logs, err := s.logs.ListUnpaidByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unpaid records")
	}
	extras, err := s.extras.ListUnpaidByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unpaid extras")
	}

	summary := &DebtSummary{
		StudentID: studentID,
		Days:      PeriodBreakdown(logs),
		Extras:    extras,
	}
	for _, day := range summary.Days {
		summary.MealsTotal += day.Total
	}
	for _, extra := range extras {
		summary.ExtrasTotal += extra.Price
	}
	summary.Total = summary.MealsTotal + summary.ExtrasTotal
	return summary, nil
}

// Settle marks every unpaid record and extra of the student inside the range
// as paid. The settled amount is computed before marking so the response
// reflects exactly what was charged.
func (s *BillingService) Settle(ctx context.Context, studentID string, req SettleRequest, settledBy string) (*SettleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settle payload")
	}
	if req.To.Before(req.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end precedes range start")
	}
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	amount, err := s.outstandingInRange(ctx, studentID, req.From, req.To)
	if err != nil {
		return nil, err
	}

	paymentDate := s.now().UTC()
	mealsSettled, err := s.logs.MarkPaidRange(ctx, studentID, req.From, req.To, paymentDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle records")
	}
	extrasSettled, err := s.extras.MarkPaidRange(ctx, studentID, req.From, req.To, paymentDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle extras")
	}

	if s.audit != nil {
		payload := fmt.Sprintf(`{"from":%q,"to":%q,"amount":%.2f}`,
			models.LocalDay(req.From), models.LocalDay(req.To), amount)
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &settledBy,
			Action:     models.AuditActionSettle,
			Resource:   "billing",
			ResourceID: &studentID,
			NewValues:  []byte(payload),
		}); err != nil {
			s.logger.Warn("failed to record settlement audit log", zap.Error(err))
		}
	}

	s.logger.Info("debt settled",
		zap.String("student_id", studentID),
		zap.Int64("meals_settled", mealsSettled),
		zap.Int64("extras_settled", extrasSettled),
		zap.Float64("amount", amount))

	return &SettleResult{
		StudentID:     studentID,
		MealsSettled:  mealsSettled,
		ExtrasSettled: extrasSettled,
		AmountSettled: amount,
		PaymentDate:   paymentDate,
	}, nil
}

func (s *BillingService) outstandingInRange(ctx context.Context, studentID string, from, to time.Time) (float64, error) {
	logs, err := s.logs.ListUnpaidByStudent(ctx, studentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unpaid records")
	}
	inRange := make([]models.MealLog, 0, len(logs))
	for i := range logs {
		if !logs[i].Timestamp.Before(from) && !logs[i].Timestamp.After(to) {
			inRange = append(inRange, logs[i])
		}
	}
	total := CalculatePeriodTotal(inRange)

	extras, err := s.extras.ListUnpaidByStudent(ctx, studentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unpaid extras")
	}
	for i := range extras {
		if !extras[i].CreatedAt.Before(from) && !extras[i].CreatedAt.After(to) {
			total += extras[i].Price
		}
	}
	return total, nil
}
