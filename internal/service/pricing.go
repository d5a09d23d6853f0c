package service

import (
	"sort"

	"github.com/comedorapp/comedor-api/internal/models"
)

// Daily plan rates in soles. A day is charged by the combination of meal
// slots consumed, not a per-meal sum: combined plans carry a discount.
const (
	rateFullBoard       = 19.00
	rateBreakfastLunch  = 14.50
	rateLunchDinner     = 14.50
	rateBreakfastDinner = 12.00
	rateLunchOnly       = 10.00
	rateSingleLight     = 6.00
)

// CalculateDailyTotal returns the charge for one calendar day of records.
// Only chargeable records count: excused and annulled records contribute
// nothing, and an unknown meal type is ignored rather than rejected.
func CalculateDailyTotal(logs []models.MealLog) float64 {
	var breakfast, lunch, dinner bool
	for i := range logs {
		if !logs[i].Status.Chargeable() {
			continue
		}
		switch logs[i].MealType {
		case models.MealBreakfast:
			breakfast = true
		case models.MealLunch:
			lunch = true
		case models.MealDinner:
			dinner = true
		}
	}
	return comboRate(breakfast, lunch, dinner)
}

func comboRate(breakfast, lunch, dinner bool) float64 {
	switch {
	case breakfast && lunch && dinner:
		return rateFullBoard
	case breakfast && lunch:
		return rateBreakfastLunch
	case lunch && dinner:
		return rateLunchDinner
	case breakfast && dinner:
		return rateBreakfastDinner
	case lunch:
		return rateLunchOnly
	case breakfast || dinner:
		return rateSingleLight
	default:
		return 0
	}
}

// DayCharge is one day's line in a billing breakdown.
type DayCharge struct {
	Day   string            `json:"day"`
	Meals []models.MealType `json:"meals"`
	Total float64           `json:"total"`
}

// CalculatePeriodTotal groups records by calendar day and sums the daily
// rates. Records spanning multiple students should not be mixed in one call.
func CalculatePeriodTotal(logs []models.MealLog) float64 {
	var total float64
	for _, charge := range PeriodBreakdown(logs) {
		total += charge.Total
	}
	return total
}

// PeriodBreakdown returns the per-day charges for the given records, ordered
// by day ascending.
func PeriodBreakdown(logs []models.MealLog) []DayCharge {
	byDay := make(map[string][]models.MealLog)
	for i := range logs {
		key := logs[i].Day()
		byDay[key] = append(byDay[key], logs[i])
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	charges := make([]DayCharge, 0, len(days))
	for _, day := range days {
		dayLogs := byDay[day]
		meals := make([]models.MealType, 0, len(dayLogs))
		for i := range dayLogs {
			if dayLogs[i].Status.Chargeable() && dayLogs[i].MealType.Valid() {
				meals = append(meals, dayLogs[i].MealType)
			}
		}
		charges = append(charges, DayCharge{
			Day:   day,
			Meals: meals,
			Total: CalculateDailyTotal(dayLogs),
		})
	}
	return charges
}
