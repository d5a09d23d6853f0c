package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/comedorapp/comedor-api/internal/models"
	appErrors "github.com/comedorapp/comedor-api/pkg/errors"
)

type mockMealLogRepo struct {
	logs       map[string]models.MealLog
	duplicates map[string]bool
	lastFilter models.MealLogFilter
}

func newMockMealLogRepo() *mockMealLogRepo {
	return &mockMealLogRepo{logs: make(map[string]models.MealLog), duplicates: make(map[string]bool)}
}

func (m *mockMealLogRepo) List(ctx context.Context, filter models.MealLogFilter) ([]models.MealLog, int, error) {
	m.lastFilter = filter
	out := make([]models.MealLog, 0, len(m.logs))
	for _, log := range m.logs {
		if filter.StudentID != "" && log.StudentID != filter.StudentID {
			continue
		}
		out = append(out, log)
	}
	return out, len(out), nil
}

func (m *mockMealLogRepo) FindByID(ctx context.Context, id string) (*models.MealLog, error) {
	if log, ok := m.logs[id]; ok {
		return &log, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMealLogRepo) Insert(ctx context.Context, log *models.MealLog) (*models.MealLog, error) {
	key := log.StudentID + "|" + string(log.MealType) + "|" + log.Day()
	if m.duplicates[key] {
		return nil, sql.ErrNoRows
	}
	m.duplicates[key] = true
	stored := *log
	stored.ID = "generated"
	m.logs[stored.ID] = stored
	return &stored, nil
}

func (m *mockMealLogRepo) ToggleAnnul(ctx context.Context, id string) (*models.MealLog, error) {
	log, ok := m.logs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if log.Status == models.StatusAnnulled {
		log.Status = models.StatusVerified
	} else {
		log.Status = models.StatusAnnulled
	}
	m.logs[id] = log
	return &log, nil
}

func (m *mockMealLogRepo) SetExtra(ctx context.Context, id string, hasExtra bool, notes *string) (*models.MealLog, error) {
	log, ok := m.logs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	log.HasExtra = hasExtra
	log.ExtraNotes = notes
	m.logs[id] = log
	return &log, nil
}

func (m *mockMealLogRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.logs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.logs, id)
	return nil
}

type stubSyncer struct {
	runs        int
	studentRuns []string
	err         error
}

func (s *stubSyncer) Run(ctx context.Context) (*SyncResult, error) {
	s.runs++
	return &SyncResult{}, s.err
}

func (s *stubSyncer) RunForStudent(ctx context.Context, studentID string) (*SyncResult, error) {
	s.studentRuns = append(s.studentRuns, studentID)
	return &SyncResult{}, s.err
}

func newAttendanceService(repo *mockMealLogRepo, syncer *stubSyncer, now time.Time) *AttendanceService {
	return NewAttendanceService(repo, syncer, nil, zap.NewNop(), time.Saturday, func() time.Time { return now })
}

func TestAttendanceServiceMark(t *testing.T) {
	now := time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)
	repo := newMockMealLogRepo()
	svc := newAttendanceService(repo, &stubSyncer{}, now)

	log, err := svc.Mark(context.Background(), MarkAttendanceRequest{
		StudentID: "s1",
		MealType:  "Almuerzo",
		Status:    "Verificado",
	})
	require.NoError(t, err)
	assert.Equal(t, models.MealLunch, log.MealType)
	assert.Equal(t, models.StatusVerified, log.Status)
	assert.Equal(t, "2026-01-07", log.Day())
}

func TestAttendanceServiceMarkDuplicate(t *testing.T) {
	now := time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)
	repo := newMockMealLogRepo()
	svc := newAttendanceService(repo, &stubSyncer{}, now)

	req := MarkAttendanceRequest{StudentID: "s1", MealType: "LUNCH", Status: "Verificado"}
	_, err := svc.Mark(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Mark(context.Background(), req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAttendanceServiceMarkNonServiceDay(t *testing.T) {
	saturday := time.Date(2026, 1, 10, 13, 0, 0, 0, time.UTC)
	svc := newAttendanceService(newMockMealLogRepo(), &stubSyncer{}, saturday)

	_, err := svc.Mark(context.Background(), MarkAttendanceRequest{StudentID: "s1", MealType: "LUNCH", Status: "Verificado"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNonServiceDay.Code, appErr.Code)
}

func TestAttendanceServiceMarkRejectsSyncStatus(t *testing.T) {
	now := time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)
	svc := newAttendanceService(newMockMealLogRepo(), &stubSyncer{}, now)

	// Suscripcion is reserved for the sync process, Anulado for the toggle.
	for _, status := range []string{"Suscripcion", "Anulado", "Unknown"} {
		_, err := svc.Mark(context.Background(), MarkAttendanceRequest{StudentID: "s1", MealType: "LUNCH", Status: status})
		assert.Error(t, err, status)
	}
}

func TestAttendanceServiceListRunsSync(t *testing.T) {
	now := time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)
	repo := newMockMealLogRepo()
	syncer := &stubSyncer{}
	svc := newAttendanceService(repo, syncer, now)

	_, pagination, err := svc.List(context.Background(), AttendanceListRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, syncer.runs)
	assert.Equal(t, 1, pagination.Page)
}

func TestAttendanceServiceStudentHistorySyncsStudent(t *testing.T) {
	now := time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)
	repo := newMockMealLogRepo()
	repo.logs["l1"] = models.MealLog{ID: "l1", StudentID: "s1", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: now}
	repo.logs["l2"] = models.MealLog{ID: "l2", StudentID: "s2", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: now}
	syncer := &stubSyncer{}
	svc := newAttendanceService(repo, syncer, now)

	logs, _, err := svc.StudentHistory(context.Background(), "s1", AttendanceListRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, syncer.studentRuns)
	require.Len(t, logs, 1)
	assert.Equal(t, "s1", logs[0].StudentID)
}

func TestAttendanceServiceStudentHistoryNotFound(t *testing.T) {
	now := time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)
	syncer := &stubSyncer{err: sql.ErrNoRows}
	svc := newAttendanceService(newMockMealLogRepo(), syncer, now)

	_, _, err := svc.StudentHistory(context.Background(), "missing", AttendanceListRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAttendanceServiceToggleAnnul(t *testing.T) {
	now := time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)
	repo := newMockMealLogRepo()
	repo.logs["l1"] = models.MealLog{ID: "l1", StudentID: "s1", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: now}
	svc := newAttendanceService(repo, &stubSyncer{}, now)

	toggled, err := svc.ToggleAnnul(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAnnulled, toggled.Status)

	restored, err := svc.ToggleAnnul(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, restored.Status)
}

func TestAttendanceServiceSetExtraLunchOnly(t *testing.T) {
	now := time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)
	repo := newMockMealLogRepo()
	repo.logs["lunch"] = models.MealLog{ID: "lunch", StudentID: "s1", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: now}
	repo.logs["dinner"] = models.MealLog{ID: "dinner", StudentID: "s1", MealType: models.MealDinner, Status: models.StatusVerified, Timestamp: now}
	svc := newAttendanceService(repo, &stubSyncer{}, now)

	notes := "second helping"
	updated, err := svc.SetExtra(context.Background(), "lunch", ExtraMarkRequest{HasExtra: true, Notes: &notes})
	require.NoError(t, err)
	assert.True(t, updated.HasExtra)

	_, err = svc.SetExtra(context.Background(), "dinner", ExtraMarkRequest{HasExtra: true})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceServiceDeleteMissing(t *testing.T) {
	now := time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)
	svc := newAttendanceService(newMockMealLogRepo(), &stubSyncer{}, now)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.False(t, errors.Is(err, sql.ErrNoRows))
}
