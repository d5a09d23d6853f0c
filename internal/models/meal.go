package models

// MealType identifies one of the three daily meal slots. The enum values are
// internal identifiers; the Spanish display labels used by terminals live in
// the label mapping below and never act as match keys.
type MealType string

const (
	MealBreakfast MealType = "BREAKFAST"
	MealLunch     MealType = "LUNCH"
	MealDinner    MealType = "DINNER"
)

// AllMealTypes lists every supported meal slot in service order.
var AllMealTypes = []MealType{MealBreakfast, MealLunch, MealDinner}

var mealLabels = map[MealType]string{
	MealBreakfast: "Desayuno",
	MealLunch:     "Almuerzo",
	MealDinner:    "Cena",
}

// Valid returns true when the meal type is a supported value.
func (t MealType) Valid() bool {
	switch t {
	case MealBreakfast, MealLunch, MealDinner:
		return true
	default:
		return false
	}
}

// Label returns the localized display label for the meal type.
func (t MealType) Label() string {
	return mealLabels[t]
}

// ParseMealType resolves an internal identifier or a display label to a meal
// type. The second return is false for unknown strings; callers treat those
// records as absent rather than failing.
func ParseMealType(raw string) (MealType, bool) {
	if t := MealType(raw); t.Valid() {
		return t, true
	}
	for t, label := range mealLabels {
		if label == raw {
			return t, true
		}
	}
	return "", false
}

// MealStatus is the consumption status of one attendance record. The stored
// strings match the terminal vocabulary; Suscripcion marks records the sync
// process synthesized, kept distinct from an explicit Verificado so audit
// views can tell "student confirmed" from "system assumed".
type MealStatus string

const (
	StatusVerified       MealStatus = "Verificado"
	StatusExcused        MealStatus = "Aviso"
	StatusAnnulled       MealStatus = "Anulado"
	StatusAutoSubscribed MealStatus = "Suscripcion"
)

// Valid returns true when the status is a supported value.
func (s MealStatus) Valid() bool {
	switch s {
	case StatusVerified, StatusExcused, StatusAnnulled, StatusAutoSubscribed:
		return true
	default:
		return false
	}
}

// Chargeable reports whether the status counts toward the daily price.
func (s MealStatus) Chargeable() bool {
	return s == StatusVerified || s == StatusAutoSubscribed
}
