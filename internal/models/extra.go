package models

import "time"

// ExtraCharge is an ad-hoc priced line item tied to a student, independent
// of the meal schedule. Extras have no auto-sync counterpart.
type ExtraCharge struct {
	ID          string     `db:"id" json:"id"`
	StudentID   string     `db:"student_id" json:"student_id"`
	Title       string     `db:"title" json:"title"`
	Price       float64    `db:"price" json:"price"`
	IsPaid      bool       `db:"is_paid" json:"is_paid"`
	PaymentDate *time.Time `db:"payment_date" json:"payment_date,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}
