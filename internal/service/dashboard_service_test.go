package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/comedorapp/comedor-api/internal/models"
)

type mockRevenueLogs struct {
	paid []models.MealLog
}

func (m *mockRevenueLogs) ListPaidBetween(ctx context.Context, from, to time.Time) ([]models.MealLog, error) {
	return m.paid, nil
}

type mockRevenueExtras struct {
	total float64
}

func (m *mockRevenueExtras) SumPaidBetween(ctx context.Context, from, to time.Time) (float64, error) {
	return m.total, nil
}

func TestDashboardServiceMonthlyRevenue(t *testing.T) {
	monday := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	payday := time.Date(2026, 1, 9, 10, 0, 0, 0, time.UTC)

	logs := &mockRevenueLogs{paid: []models.MealLog{
		{StudentID: "s1", MealType: models.MealBreakfast, Status: models.StatusVerified, Timestamp: monday, IsPaid: true, PaymentDate: &payday},
		{StudentID: "s1", MealType: models.MealLunch, Status: models.StatusAutoSubscribed, Timestamp: monday, IsPaid: true, PaymentDate: &payday},
		{StudentID: "s2", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: monday, IsPaid: true, PaymentDate: &payday},
	}}
	extras := &mockRevenueExtras{total: 4.00}

	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	svc := NewDashboardService(logs, extras, nil, zap.NewNop(), time.Minute, func() time.Time { return now })

	summary, cached, err := svc.MonthlyRevenue(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2026, summary.Year)
	assert.Equal(t, 1, summary.Month)
	// s1 pays the breakfast+lunch combo, s2 lunch only.
	assert.InDelta(t, 24.50, summary.MealsTotal, 0.001)
	assert.InDelta(t, 4.00, summary.ExtrasTotal, 0.001)
	assert.InDelta(t, 28.50, summary.Total, 0.001)

	require.Len(t, summary.Days, 1)
	assert.Equal(t, "2026-01-09", summary.Days[0].Day)
	assert.InDelta(t, 24.50, summary.Days[0].Total, 0.001)
}

func TestDashboardServiceMonthlyRevenueInvalidMonth(t *testing.T) {
	svc := NewDashboardService(&mockRevenueLogs{}, &mockRevenueExtras{}, nil, zap.NewNop(), time.Minute, nil)

	_, _, err := svc.MonthlyRevenue(context.Background(), 2026, 13)
	assert.Error(t, err)
}
