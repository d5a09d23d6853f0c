package models

import (
	"time"

	"github.com/lib/pq"
)

// Student represents a meal-plan subscriber registered at the cafeteria.
// SubscribedMeals drives which slots the attendance sync must ensure exist
// each service day.
type Student struct {
	ID              string         `db:"id" json:"id"`
	Code            string         `db:"code" json:"code"`
	FirstName       string         `db:"first_name" json:"first_name"`
	LastName        string         `db:"last_name" json:"last_name"`
	DNI             string         `db:"dni" json:"dni"`
	Email           string         `db:"email" json:"email"`
	Phone           string         `db:"phone" json:"phone"`
	ParentPhone     string         `db:"parent_phone" json:"parent_phone"`
	Address         string         `db:"address" json:"address"`
	BirthDate       *time.Time     `db:"birth_date" json:"birth_date,omitempty"`
	JoinedDate      *time.Time     `db:"joined_date" json:"joined_date,omitempty"`
	SubscribedMeals pq.StringArray `db:"subscribed_meals" json:"subscribed_meals"`
	Notes           string         `db:"notes" json:"notes"`
	AvatarURL       *string        `db:"avatar_url" json:"avatar_url,omitempty"`
	Active          bool           `db:"active" json:"active"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// SubscribedMealTypes returns the subscribed meal set as validated meal
// types, dropping anything unrecognized.
func (s *Student) SubscribedMealTypes() []MealType {
	out := make([]MealType, 0, len(s.SubscribedMeals))
	for _, raw := range s.SubscribedMeals {
		if t, ok := ParseMealType(raw); ok {
			out = append(out, t)
		}
	}
	return out
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
