package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/comedorapp/comedor-api/internal/models"
	appErrors "github.com/comedorapp/comedor-api/pkg/errors"
)

type revenueMealLogRepository interface {
	ListPaidBetween(ctx context.Context, from, to time.Time) ([]models.MealLog, error)
}

type revenueExtraRepository interface {
	SumPaidBetween(ctx context.Context, from, to time.Time) (float64, error)
}

// DayRevenue is one settled day's share of the monthly total.
type DayRevenue struct {
	Day   string  `json:"day"`
	Total float64 `json:"total"`
}

// RevenueSummary aggregates settled income for one calendar month. Amounts
// are derived from the rate table at read time, grouped by payment date.
type RevenueSummary struct {
	Year        int          `json:"year"`
	Month       int          `json:"month"`
	MealsTotal  float64      `json:"meals_total"`
	ExtrasTotal float64      `json:"extras_total"`
	Total       float64      `json:"total"`
	Days        []DayRevenue `json:"days"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// DashboardService composes the monthly revenue summary, cached in Redis.
type DashboardService struct {
	logs     revenueMealLogRepository
	extras   revenueExtraRepository
	cache    *CacheService
	logger   *zap.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewDashboardService constructs the dashboard service.
func NewDashboardService(logs revenueMealLogRepository, extras revenueExtraRepository, cache *CacheService, logger *zap.Logger, cacheTTL time.Duration, now func() time.Time) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &DashboardService{logs: logs, extras: extras, cache: cache, logger: logger, cacheTTL: cacheTTL, now: now}
}

// MonthlyRevenue returns the revenue summary for the given month. The second
// return reports whether the payload came from cache. Zero year/month default
// to the current month.
func (s *DashboardService) MonthlyRevenue(ctx context.Context, year, month int) (*RevenueSummary, bool, error) {
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}

	cacheKey := fmt.Sprintf("dash:revenue:%04d-%02d", year, month)
	if s.cache != nil {
		var cached RevenueSummary
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)

	logs, err := s.logs.ListPaidBetween(ctx, from, to)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settled records")
	}
	extrasTotal, err := s.extras.SumPaidBetween(ctx, from, to)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum settled extras")
	}

	summary := s.compose(year, month, logs, extrasTotal)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache revenue summary", zap.Error(err))
		}
	}
	return summary, false, nil
}

// compose prices the settled records student by student so the combined-plan
// discount applies per student per day, then attributes each day's charge to
// the payment date.
func (s *DashboardService) compose(year, month int, logs []models.MealLog, extrasTotal float64) *RevenueSummary {
	byStudent := make(map[string][]models.MealLog)
	for i := range logs {
		byStudent[logs[i].StudentID] = append(byStudent[logs[i].StudentID], logs[i])
	}

	paymentDayByServiceDay := make(map[string]string)
	for i := range logs {
		if logs[i].PaymentDate != nil {
			key := logs[i].StudentID + "|" + logs[i].Day()
			paymentDayByServiceDay[key] = models.LocalDay(*logs[i].PaymentDate)
		}
	}

	dayTotals := make(map[string]float64)
	var mealsTotal float64
	for studentID, studentLogs := range byStudent {
		for _, charge := range PeriodBreakdown(studentLogs) {
			mealsTotal += charge.Total
			paymentDay := paymentDayByServiceDay[studentID+"|"+charge.Day]
			if paymentDay == "" {
				paymentDay = charge.Day
			}
			dayTotals[paymentDay] += charge.Total
		}
	}

	days := make([]DayRevenue, 0, len(dayTotals))
	for day, total := range dayTotals {
		days = append(days, DayRevenue{Day: day, Total: total})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day < days[j].Day })

	return &RevenueSummary{
		Year:        year,
		Month:       month,
		MealsTotal:  mealsTotal,
		ExtrasTotal: extrasTotal,
		Total:       mealsTotal + extrasTotal,
		Days:        days,
		GeneratedAt: s.now().UTC(),
	}
}
