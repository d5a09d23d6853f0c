package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/comedorapp/comedor-api/internal/models"
	appErrors "github.com/comedorapp/comedor-api/pkg/errors"
)

type mockBillingLogs struct {
	unpaid []models.MealLog
	marked int64
}

func (m *mockBillingLogs) ListUnpaidByStudent(ctx context.Context, studentID string) ([]models.MealLog, error) {
	return m.unpaid, nil
}

func (m *mockBillingLogs) MarkPaidRange(ctx context.Context, studentID string, from, to time.Time, paymentDate time.Time) (int64, error) {
	var count int64
	for _, log := range m.unpaid {
		if !log.Timestamp.Before(from) && !log.Timestamp.After(to) {
			count++
		}
	}
	m.marked = count
	return count, nil
}

type mockBillingExtras struct {
	unpaid []models.ExtraCharge
	marked int64
}

func (m *mockBillingExtras) ListUnpaidByStudent(ctx context.Context, studentID string) ([]models.ExtraCharge, error) {
	return m.unpaid, nil
}

func (m *mockBillingExtras) MarkPaidRange(ctx context.Context, studentID string, from, to time.Time, paymentDate time.Time) (int64, error) {
	var count int64
	for _, extra := range m.unpaid {
		if !extra.CreatedAt.Before(from) && !extra.CreatedAt.After(to) {
			count++
		}
	}
	m.marked = count
	return count, nil
}

type mockBillingStudents struct {
	known map[string]bool
}

func (m *mockBillingStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if m.known[id] {
		return &models.Student{ID: id, Active: true}, nil
	}
	return nil, sql.ErrNoRows
}

type mockAudit struct {
	entries []models.AuditLog
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.entries = append(m.entries, *log)
	return nil
}

func TestBillingServiceDebt(t *testing.T) {
	monday := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	logs := &mockBillingLogs{unpaid: []models.MealLog{
		{StudentID: "s1", MealType: models.MealBreakfast, Status: models.StatusVerified, Timestamp: monday},
		{StudentID: "s1", MealType: models.MealLunch, Status: models.StatusAutoSubscribed, Timestamp: monday},
		{StudentID: "s1", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: tuesday},
	}}
	extras := &mockBillingExtras{unpaid: []models.ExtraCharge{
		{StudentID: "s1", Title: "Dessert", Price: 2.50, CreatedAt: monday},
	}}
	students := &mockBillingStudents{known: map[string]bool{"s1": true}}

	svc := NewBillingService(logs, extras, students, &mockAudit{}, nil, zap.NewNop(), nil)

	debt, err := svc.Debt(context.Background(), "s1")
	require.NoError(t, err)
	// Monday charges the breakfast+lunch combo, Tuesday lunch only.
	assert.InDelta(t, 24.50, debt.MealsTotal, 0.001)
	assert.InDelta(t, 2.50, debt.ExtrasTotal, 0.001)
	assert.InDelta(t, 27.00, debt.Total, 0.001)
	assert.Len(t, debt.Days, 2)
}

func TestBillingServiceDebtUnknownStudent(t *testing.T) {
	svc := NewBillingService(&mockBillingLogs{}, &mockBillingExtras{}, &mockBillingStudents{}, &mockAudit{}, nil, zap.NewNop(), nil)

	_, err := svc.Debt(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBillingServiceSettle(t *testing.T) {
	monday := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)
	nextWeek := monday.AddDate(0, 0, 7)

	logs := &mockBillingLogs{unpaid: []models.MealLog{
		{StudentID: "s1", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: monday},
		{StudentID: "s1", MealType: models.MealLunch, Status: models.StatusAutoSubscribed, Timestamp: tuesday},
		{StudentID: "s1", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: nextWeek},
	}}
	extras := &mockBillingExtras{unpaid: []models.ExtraCharge{
		{StudentID: "s1", Title: "Dessert", Price: 2.50, CreatedAt: monday},
		{StudentID: "s1", Title: "Juice", Price: 1.50, CreatedAt: nextWeek},
	}}
	students := &mockBillingStudents{known: map[string]bool{"s1": true}}
	audit := &mockAudit{}

	now := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	svc := NewBillingService(logs, extras, students, audit, nil, zap.NewNop(), func() time.Time { return now })

	result, err := svc.Settle(context.Background(), "s1", SettleRequest{
		From: monday.AddDate(0, 0, -1),
		To:   tuesday.AddDate(0, 0, 1),
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.MealsSettled)
	assert.Equal(t, int64(1), result.ExtrasSettled)
	// Two lunch-only days plus the dessert; next week's records are untouched.
	assert.InDelta(t, 22.50, result.AmountSettled, 0.001)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionSettle, audit.entries[0].Action)
	assert.Equal(t, "billing", audit.entries[0].Resource)
}

func TestBillingServiceSettleInvalidRange(t *testing.T) {
	students := &mockBillingStudents{known: map[string]bool{"s1": true}}
	svc := NewBillingService(&mockBillingLogs{}, &mockBillingExtras{}, students, &mockAudit{}, nil, zap.NewNop(), nil)

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.Settle(context.Background(), "s1", SettleRequest{From: from, To: from.AddDate(0, 0, -3)}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
