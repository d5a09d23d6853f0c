package models

import "time"

// MealLog is one attendance record: a single student/meal-type/calendar-day
// entry. The store enforces at most one row per (student, meal type, day);
// the sync planner relies on that uniqueness and never overwrites rows.
type MealLog struct {
	ID          string     `db:"id" json:"id"`
	StudentID   string     `db:"student_id" json:"student_id"`
	MealType    MealType   `db:"meal_type" json:"meal_type"`
	Status      MealStatus `db:"status" json:"status"`
	Timestamp   time.Time  `db:"timestamp" json:"timestamp"`
	HasExtra    bool       `db:"has_extra" json:"has_extra"`
	ExtraNotes  *string    `db:"extra_notes" json:"extra_notes,omitempty"`
	IsPaid      bool       `db:"is_paid" json:"is_paid"`
	PaymentDate *time.Time `db:"payment_date" json:"payment_date,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Day returns the local calendar date key of the record. Day-slot equality
// always goes through this key, not timestamp ranges, so timezone-boundary
// records cannot produce duplicates or gaps.
func (l *MealLog) Day() string {
	return LocalDay(l.Timestamp)
}

// LocalDay formats a timestamp as its local calendar date.
func LocalDay(t time.Time) string {
	return t.Format("2006-01-02")
}

// MealLogFilter scopes listing queries.
type MealLogFilter struct {
	StudentID string
	MealType  *MealType
	Status    *MealStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	Unpaid    bool
	Page      int
	PageSize  int
	SortOrder string
}

// MealLogConflict captures a batch insert rejected by the day-slot
// uniqueness constraint, e.g. when two terminals sync the same student
// concurrently.
type MealLogConflict struct {
	StudentID string   `json:"student_id"`
	MealType  MealType `json:"meal_type"`
	Day       string   `json:"day"`
	Reason    string   `json:"reason"`
}
