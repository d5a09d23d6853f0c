package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comedorapp/comedor-api/internal/models"
)

func newMealLogMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func mealLogRows(logs ...models.MealLog) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "student_id", "meal_type", "status", "timestamp", "has_extra", "extra_notes", "is_paid", "payment_date", "created_at", "updated_at"})
	for _, l := range logs {
		rows.AddRow(l.ID, l.StudentID, l.MealType, l.Status, l.Timestamp, l.HasExtra, l.ExtraNotes, l.IsPaid, l.PaymentDate, l.CreatedAt, l.UpdatedAt)
	}
	return rows
}

func TestMealLogRepositoryList(t *testing.T) {
	db, mock, cleanup := newMealLogMock(t)
	defer cleanup()
	repo := NewMealLogRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM meal_logs WHERE 1=1 AND student_id").
		WithArgs("s1").
		WillReturnRows(mealLogRows(models.MealLog{ID: "l1", StudentID: "s1", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: now}))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	logs, total, err := repo.List(context.Background(), models.MealLogFilter{StudentID: "s1"})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMealLogRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newMealLogMock(t)
	defer cleanup()
	repo := NewMealLogRepository(db)

	ts := time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO meal_logs").
		WillReturnRows(mealLogRows(models.MealLog{ID: "l1", StudentID: "s1", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: ts}))

	stored, err := repo.Insert(context.Background(), &models.MealLog{StudentID: "s1", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, "l1", stored.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMealLogRepositoryInsertConflict(t *testing.T) {
	db, mock, cleanup := newMealLogMock(t)
	defer cleanup()
	repo := NewMealLogRepository(db)

	// ON CONFLICT DO NOTHING returns no row when the slot is taken.
	mock.ExpectQuery("INSERT INTO meal_logs").
		WillReturnRows(mealLogRows())

	_, err := repo.Insert(context.Background(), &models.MealLog{StudentID: "s1", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: time.Now()})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMealLogRepositoryBulkInsertCapturesConflicts(t *testing.T) {
	db, mock, cleanup := newMealLogMock(t)
	defer cleanup()
	repo := NewMealLogRepository(db)

	ts := time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO meal_logs").
		WillReturnRows(mealLogRows(models.MealLog{ID: "l1", StudentID: "s1", MealType: models.MealBreakfast, Status: models.StatusAutoSubscribed, Timestamp: ts}))
	mock.ExpectQuery("INSERT INTO meal_logs").
		WillReturnRows(mealLogRows())
	mock.ExpectCommit()

	inserted, conflicts, err := repo.BulkInsert(context.Background(), []models.MealLog{
		{StudentID: "s1", MealType: models.MealBreakfast, Status: models.StatusAutoSubscribed, Timestamp: ts},
		{StudentID: "s1", MealType: models.MealLunch, Status: models.StatusAutoSubscribed, Timestamp: ts},
	})
	require.NoError(t, err)
	assert.Len(t, inserted, 1)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.MealLunch, conflicts[0].MealType)
	assert.Equal(t, "2026-01-07", conflicts[0].Day)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMealLogRepositoryToggleAnnul(t *testing.T) {
	db, mock, cleanup := newMealLogMock(t)
	defer cleanup()
	repo := NewMealLogRepository(db)

	mock.ExpectQuery("UPDATE meal_logs").
		WithArgs("l1", models.StatusAnnulled, models.StatusVerified, sqlmock.AnyArg()).
		WillReturnRows(mealLogRows(models.MealLog{ID: "l1", StudentID: "s1", MealType: models.MealLunch, Status: models.StatusAnnulled, Timestamp: time.Now()}))

	row, err := repo.ToggleAnnul(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAnnulled, row.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMealLogRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMealLogMock(t)
	defer cleanup()
	repo := NewMealLogRepository(db)

	mock.ExpectExec("DELETE FROM meal_logs").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMealLogRepositoryMarkPaidRange(t *testing.T) {
	db, mock, cleanup := newMealLogMock(t)
	defer cleanup()
	repo := NewMealLogRepository(db)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	paid := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE meal_logs").
		WithArgs("s1", from, to, paid, sqlmock.AnyArg(), models.StatusVerified, models.StatusAutoSubscribed).
		WillReturnResult(sqlmock.NewResult(0, 4))

	affected, err := repo.MarkPaidRange(context.Background(), "s1", from, to, paid)
	require.NoError(t, err)
	assert.Equal(t, int64(4), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
