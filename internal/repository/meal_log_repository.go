package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/comedorapp/comedor-api/internal/models"
)

// MealLogRepository handles persistence for attendance records. The
// meal_logs table carries a day column derived from the record timestamp
// with a unique index over (student_id, meal_type, day); every insert goes
// through ON CONFLICT DO NOTHING so concurrent sync passes from two
// terminals cannot produce duplicate day slots.
type MealLogRepository struct {
	db *sqlx.DB
}

// NewMealLogRepository constructs the repository.
func NewMealLogRepository(db *sqlx.DB) *MealLogRepository {
	return &MealLogRepository{db: db}
}

const mealLogColumns = "id, student_id, meal_type, status, timestamp, has_extra, extra_notes, is_paid, payment_date, created_at, updated_at"

// List returns meal logs matching the provided filter.
func (r *MealLogRepository) List(ctx context.Context, filter models.MealLogFilter) ([]models.MealLog, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.MealType != nil && filter.MealType.Valid() {
		where = append(where, fmt.Sprintf("meal_type = $%d", len(args)+1))
		args = append(args, *filter.MealType)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("timestamp <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.Unpaid {
		where = append(where, "is_paid = false")
	}
	whereClause := strings.Join(where, " AND ")

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM meal_logs WHERE %s ORDER BY timestamp %s LIMIT %d OFFSET %d`,
		mealLogColumns, whereClause, order, size, offset)

	var rows []models.MealLog
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list meal logs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM meal_logs WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count meal logs: %w", err)
	}
	return rows, total, nil
}

// FetchWindow returns all logs for the given students recorded at or after
// the window start. Used by the sync process before planning backfill.
func (r *MealLogRepository) FetchWindow(ctx context.Context, studentIDs []string, since time.Time) ([]models.MealLog, error) {
	if len(studentIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		fmt.Sprintf("SELECT %s FROM meal_logs WHERE student_id IN (?) AND timestamp >= ?", mealLogColumns),
		studentIDs, since)
	if err != nil {
		return nil, fmt.Errorf("build window query: %w", err)
	}
	query = r.db.Rebind(query)
	var rows []models.MealLog
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("fetch meal log window: %w", err)
	}
	return rows, nil
}

// FindByID fetches a single meal log.
func (r *MealLogRepository) FindByID(ctx context.Context, id string) (*models.MealLog, error) {
	query := fmt.Sprintf("SELECT %s FROM meal_logs WHERE id = $1", mealLogColumns)
	var row models.MealLog
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return &row, nil
}

// Insert stores a single record. It returns sql.ErrNoRows when the day slot
// already exists so callers can surface an explicit conflict.
func (r *MealLogRepository) Insert(ctx context.Context, log *models.MealLog) (*models.MealLog, error) {
	now := time.Now().UTC()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO meal_logs (id, student_id, meal_type, status, timestamp, day, has_extra, extra_notes, is_paid, payment_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (student_id, meal_type, day) DO NOTHING
RETURNING %s`, mealLogColumns)
	var stored models.MealLog
	err := r.db.GetContext(ctx, &stored, query,
		log.ID, log.StudentID, log.MealType, log.Status, log.Timestamp, models.LocalDay(log.Timestamp),
		log.HasExtra, log.ExtraNotes, log.IsPaid, log.PaymentDate, log.CreatedAt, log.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("insert meal log: %w", err)
	}
	return &stored, nil
}

// BulkInsert stores many records best-effort, one statement per row so a
// conflicting slot does not poison the rest of the batch. It returns the
// rows actually inserted plus the conflicts that were skipped.
func (r *MealLogRepository) BulkInsert(ctx context.Context, logs []models.MealLog) ([]models.MealLog, []models.MealLogConflict, error) {
	if len(logs) == 0 {
		return nil, nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin bulk meal log insert: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	query := fmt.Sprintf(`INSERT INTO meal_logs (id, student_id, meal_type, status, timestamp, day, has_extra, extra_notes, is_paid, payment_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (student_id, meal_type, day) DO NOTHING
RETURNING %s`, mealLogColumns)

	now := time.Now().UTC()
	inserted := make([]models.MealLog, 0, len(logs))
	conflicts := make([]models.MealLogConflict, 0)
	for i := range logs {
		rec := &logs[i]
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		var stored models.MealLog
		err := tx.GetContext(ctx, &stored, query,
			rec.ID, rec.StudentID, rec.MealType, rec.Status, rec.Timestamp, models.LocalDay(rec.Timestamp),
			rec.HasExtra, rec.ExtraNotes, rec.IsPaid, rec.PaymentDate, rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			if err == sql.ErrNoRows {
				conflicts = append(conflicts, models.MealLogConflict{
					StudentID: rec.StudentID,
					MealType:  rec.MealType,
					Day:       models.LocalDay(rec.Timestamp),
					Reason:    "duplicate day slot",
				})
				continue
			}
			return nil, nil, fmt.Errorf("bulk insert meal log: %w", err)
		}
		inserted = append(inserted, stored)
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit bulk meal log insert: %w", err)
	}
	commit = true
	return inserted, conflicts, nil
}

// ToggleAnnul flips a record between annulled and verified, mirroring the
// terminal's void/restore action.
func (r *MealLogRepository) ToggleAnnul(ctx context.Context, id string) (*models.MealLog, error) {
	query := fmt.Sprintf(`UPDATE meal_logs
SET status = CASE WHEN status = $2 THEN $3 ELSE $2 END, updated_at = $4
WHERE id = $1
RETURNING %s`, mealLogColumns)
	var row models.MealLog
	err := r.db.GetContext(ctx, &row, query, id, models.StatusAnnulled, models.StatusVerified, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SetExtra updates the lunch extra marker on a record.
func (r *MealLogRepository) SetExtra(ctx context.Context, id string, hasExtra bool, notes *string) (*models.MealLog, error) {
	query := fmt.Sprintf(`UPDATE meal_logs SET has_extra = $2, extra_notes = $3, updated_at = $4 WHERE id = $1 RETURNING %s`, mealLogColumns)
	var row models.MealLog
	if err := r.db.GetContext(ctx, &row, query, id, hasExtra, notes, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &row, nil
}

// Delete removes a record permanently.
func (r *MealLogRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM meal_logs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete meal log: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListUnpaidByStudent returns all unpaid chargeable logs for a student.
func (r *MealLogRepository) ListUnpaidByStudent(ctx context.Context, studentID string) ([]models.MealLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM meal_logs
WHERE student_id = $1 AND is_paid = false AND status IN ($2, $3)
ORDER BY timestamp ASC`, mealLogColumns)
	var rows []models.MealLog
	if err := r.db.SelectContext(ctx, &rows, query, studentID, models.StatusVerified, models.StatusAutoSubscribed); err != nil {
		return nil, fmt.Errorf("list unpaid meal logs: %w", err)
	}
	return rows, nil
}

// MarkPaidRange marks every unpaid chargeable log of the student inside the
// date range as paid. It returns the number of settled rows.
func (r *MealLogRepository) MarkPaidRange(ctx context.Context, studentID string, from, to time.Time, paymentDate time.Time) (int64, error) {
	query := `UPDATE meal_logs
SET is_paid = true, payment_date = $4, updated_at = $5
WHERE student_id = $1 AND is_paid = false AND status IN ($6, $7) AND timestamp >= $2 AND timestamp <= $3`
	res, err := r.db.ExecContext(ctx, query, studentID, from, to, paymentDate, time.Now().UTC(),
		models.StatusVerified, models.StatusAutoSubscribed)
	if err != nil {
		return 0, fmt.Errorf("mark meal logs paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark meal logs paid: %w", err)
	}
	return affected, nil
}

// ListPaidBetween returns paid chargeable logs whose payment date falls in
// the given range. Used by the revenue dashboard.
func (r *MealLogRepository) ListPaidBetween(ctx context.Context, from, to time.Time) ([]models.MealLog, error) {
	query := fmt.Sprintf(`SELECT %s FROM meal_logs
WHERE is_paid = true AND payment_date >= $1 AND payment_date <= $2 AND status IN ($3, $4)
ORDER BY payment_date ASC`, mealLogColumns)
	var rows []models.MealLog
	if err := r.db.SelectContext(ctx, &rows, query, from, to, models.StatusVerified, models.StatusAutoSubscribed); err != nil {
		return nil, fmt.Errorf("list paid meal logs: %w", err)
	}
	return rows, nil
}
