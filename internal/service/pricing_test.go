package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/comedorapp/comedor-api/internal/models"
)

func logAt(day time.Time, meal models.MealType, status models.MealStatus) models.MealLog {
	return models.MealLog{StudentID: "s1", MealType: meal, Status: status, Timestamp: day}
}

func TestCalculateDailyTotalCombinations(t *testing.T) {
	day := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		meals []models.MealType
		want  float64
	}{
		{"full board", []models.MealType{models.MealBreakfast, models.MealLunch, models.MealDinner}, 19.00},
		{"breakfast and lunch", []models.MealType{models.MealBreakfast, models.MealLunch}, 14.50},
		{"lunch and dinner", []models.MealType{models.MealLunch, models.MealDinner}, 14.50},
		{"breakfast and dinner", []models.MealType{models.MealBreakfast, models.MealDinner}, 12.00},
		{"lunch only", []models.MealType{models.MealLunch}, 10.00},
		{"breakfast only", []models.MealType{models.MealBreakfast}, 6.00},
		{"dinner only", []models.MealType{models.MealDinner}, 6.00},
		{"nothing", nil, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logs := make([]models.MealLog, 0, len(tc.meals))
			for _, meal := range tc.meals {
				logs = append(logs, logAt(day, meal, models.StatusVerified))
			}
			assert.InDelta(t, tc.want, CalculateDailyTotal(logs), 0.001)
		})
	}
}

func TestCalculateDailyTotalDuplicateRecordsIdempotent(t *testing.T) {
	day := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

	single := []models.MealLog{
		logAt(day, models.MealLunch, models.StatusVerified),
	}
	duplicated := []models.MealLog{
		logAt(day, models.MealLunch, models.StatusVerified),
		logAt(day.Add(time.Hour), models.MealLunch, models.StatusVerified),
	}

	assert.InDelta(t, 10.00, CalculateDailyTotal(single), 0.001)
	assert.InDelta(t, CalculateDailyTotal(single), CalculateDailyTotal(duplicated), 0.001)
}

func TestCalculateDailyTotalIgnoresNonChargeable(t *testing.T) {
	day := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	logs := []models.MealLog{
		logAt(day, models.MealBreakfast, models.StatusVerified),
		logAt(day, models.MealLunch, models.StatusExcused),
		logAt(day, models.MealDinner, models.StatusAnnulled),
	}
	assert.InDelta(t, 6.00, CalculateDailyTotal(logs), 0.001)
}

func TestCalculateDailyTotalAutoSubscribedCharges(t *testing.T) {
	day := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	logs := []models.MealLog{
		logAt(day, models.MealBreakfast, models.StatusAutoSubscribed),
		logAt(day, models.MealLunch, models.StatusVerified),
	}
	assert.InDelta(t, 14.50, CalculateDailyTotal(logs), 0.001)
}

func TestCalculateDailyTotalUnknownMealType(t *testing.T) {
	day := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	logs := []models.MealLog{
		logAt(day, models.MealLunch, models.StatusVerified),
		logAt(day, models.MealType("Merienda"), models.StatusVerified),
	}
	assert.InDelta(t, 10.00, CalculateDailyTotal(logs), 0.001)
}

func TestCalculatePeriodTotalGroupsByDay(t *testing.T) {
	monday := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	logs := []models.MealLog{
		logAt(monday, models.MealBreakfast, models.StatusVerified),
		logAt(monday, models.MealLunch, models.StatusVerified),
		logAt(monday, models.MealDinner, models.StatusVerified),
		logAt(tuesday, models.MealLunch, models.StatusAutoSubscribed),
	}

	assert.InDelta(t, 29.00, CalculatePeriodTotal(logs), 0.001)
}

func TestPeriodBreakdownOrdered(t *testing.T) {
	monday := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	logs := []models.MealLog{
		logAt(tuesday, models.MealLunch, models.StatusVerified),
		logAt(monday, models.MealBreakfast, models.StatusVerified),
		logAt(monday, models.MealLunch, models.StatusExcused),
	}

	breakdown := PeriodBreakdown(logs)
	assert.Len(t, breakdown, 2)
	assert.Equal(t, "2026-01-05", breakdown[0].Day)
	assert.InDelta(t, 6.00, breakdown[0].Total, 0.001)
	assert.Equal(t, []models.MealType{models.MealBreakfast}, breakdown[0].Meals)
	assert.Equal(t, "2026-01-06", breakdown[1].Day)
	assert.InDelta(t, 10.00, breakdown[1].Total, 0.001)
}
