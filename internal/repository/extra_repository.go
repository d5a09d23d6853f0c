package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/comedorapp/comedor-api/internal/models"
)

// ExtraRepository manages persistence for ad-hoc extra charges.
type ExtraRepository struct {
	db *sqlx.DB
}

// NewExtraRepository constructs an ExtraRepository.
func NewExtraRepository(db *sqlx.DB) *ExtraRepository {
	return &ExtraRepository{db: db}
}

const extraColumns = "id, student_id, title, price, is_paid, payment_date, created_at"

// ListByStudent returns extras for a student, optionally since a timestamp.
func (r *ExtraRepository) ListByStudent(ctx context.Context, studentID string, since *time.Time) ([]models.ExtraCharge, error) {
	query := fmt.Sprintf("SELECT %s FROM student_extras WHERE student_id = $1", extraColumns)
	args := []interface{}{studentID}
	if since != nil {
		query += " AND created_at >= $2"
		args = append(args, *since)
	}
	query += " ORDER BY created_at DESC"
	var rows []models.ExtraCharge
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list extras: %w", err)
	}
	return rows, nil
}

// ListUnpaidByStudent returns unpaid extras for a student.
func (r *ExtraRepository) ListUnpaidByStudent(ctx context.Context, studentID string) ([]models.ExtraCharge, error) {
	query := fmt.Sprintf("SELECT %s FROM student_extras WHERE student_id = $1 AND is_paid = false ORDER BY created_at ASC", extraColumns)
	var rows []models.ExtraCharge
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list unpaid extras: %w", err)
	}
	return rows, nil
}

// Create inserts an extra charge.
func (r *ExtraRepository) Create(ctx context.Context, extra *models.ExtraCharge) error {
	if extra.ID == "" {
		extra.ID = uuid.NewString()
	}
	if extra.CreatedAt.IsZero() {
		extra.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO student_extras (id, student_id, title, price, is_paid, payment_date, created_at)
        VALUES (:id, :student_id, :title, :price, :is_paid, :payment_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, extra); err != nil {
		return fmt.Errorf("create extra: %w", err)
	}
	return nil
}

// Delete removes an extra charge.
func (r *ExtraRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM student_extras WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete extra: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkPaidRange settles every unpaid extra of the student created inside the
// date range, returning the number of settled rows.
func (r *ExtraRepository) MarkPaidRange(ctx context.Context, studentID string, from, to time.Time, paymentDate time.Time) (int64, error) {
	query := `UPDATE student_extras
SET is_paid = true, payment_date = $4
WHERE student_id = $1 AND is_paid = false AND created_at >= $2 AND created_at <= $3`
	res, err := r.db.ExecContext(ctx, query, studentID, from, to, paymentDate)
	if err != nil {
		return 0, fmt.Errorf("mark extras paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark extras paid: %w", err)
	}
	return affected, nil
}

// SumPaidBetween sums paid extras whose payment date falls in the range.
func (r *ExtraRepository) SumPaidBetween(ctx context.Context, from, to time.Time) (float64, error) {
	const query = `SELECT COALESCE(SUM(price), 0) FROM student_extras WHERE is_paid = true AND payment_date >= $1 AND payment_date <= $2`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, from, to); err != nil {
		return 0, fmt.Errorf("sum paid extras: %w", err)
	}
	return total, nil
}
