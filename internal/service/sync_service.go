package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/comedorapp/comedor-api/internal/models"
)

type syncStudentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type syncMealLogRepository interface {
	FetchWindow(ctx context.Context, studentIDs []string, since time.Time) ([]models.MealLog, error)
	BulkInsert(ctx context.Context, logs []models.MealLog) ([]models.MealLog, []models.MealLogConflict, error)
}

// SyncConfig tunes the attendance auto-sync.
type SyncConfig struct {
	// WindowDays is how many trailing calendar days each pass covers,
	// including today.
	WindowDays int
	// NonServiceDay is the weekday without meal service. The planner never
	// synthesizes records for it.
	NonServiceDay time.Weekday
}

// SyncResult summarises one sync pass.
type SyncResult struct {
	Students  int                      `json:"students"`
	Planned   int                      `json:"planned"`
	Inserted  []models.MealLog         `json:"inserted"`
	Conflicts []models.MealLogConflict `json:"conflicts,omitempty"`
}

// SyncService backfills subscription attendance records. Any student who was
// subscribed to a meal but has no record for a recent service day is assumed
// to have eaten, so the service inserts a Suscripcion record for that slot.
// It only ever fills gaps: existing records of any status are left untouched.
type SyncService struct {
	students syncStudentRepository
	logs     syncMealLogRepository
	logger   *zap.Logger
	metrics  *MetricsService
	config   SyncConfig
	now      func() time.Time
}

// NewSyncService constructs the sync service. The clock defaults to
// time.Now and is injectable for deterministic planning.
func NewSyncService(students syncStudentRepository, logs syncMealLogRepository, logger *zap.Logger, metrics *MetricsService, config SyncConfig, now func() time.Time) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	if config.WindowDays <= 0 {
		config.WindowDays = 3
	}
	return &SyncService{students: students, logs: logs, logger: logger, metrics: metrics, config: config, now: now}
}

// PlanBackfill computes the records the sync should insert for one student,
// given the student's existing records in the window. The plan walks the
// trailing window day by day, skips the non-service weekday, and proposes a
// Suscripcion record for every subscribed meal slot that has no record yet.
// The window is anchored on now alone: enrollment date does not clip it, so a
// student enrolled yesterday still gets the full trailing window.
func PlanBackfill(student *models.Student, existing []models.MealLog, now time.Time, config SyncConfig) []models.MealLog {
	if student == nil || !student.Active {
		return nil
	}
	subscribed := student.SubscribedMealTypes()
	if len(subscribed) == 0 {
		return nil
	}

	taken := make(map[string]struct{}, len(existing))
	for i := range existing {
		taken[slotKey(existing[i].MealType, existing[i].Day())] = struct{}{}
	}

	var planned []models.MealLog
	for i := 0; i < config.WindowDays; i++ {
		day := now.AddDate(0, 0, -i)
		if day.Weekday() == config.NonServiceDay {
			continue
		}
		dayKey := models.LocalDay(day)
		for _, meal := range subscribed {
			if _, ok := taken[slotKey(meal, dayKey)]; ok {
				continue
			}
			planned = append(planned, models.MealLog{
				StudentID: student.ID,
				MealType:  meal,
				Status:    models.StatusAutoSubscribed,
				Timestamp: day,
			})
		}
	}
	return planned
}

func slotKey(meal models.MealType, day string) string {
	return string(meal) + "|" + day
}

// Run performs a sync pass over every active student.
func (s *SyncService) Run(ctx context.Context) (*SyncResult, error) {
	active := true
	page := 1
	const pageSize = 100

	var roster []models.Student
	for {
		students, total, err := s.students.List(ctx, models.StudentFilter{Active: &active, Page: page, PageSize: pageSize})
		if err != nil {
			return nil, err
		}
		roster = append(roster, students...)
		if len(roster) >= total || len(students) == 0 {
			break
		}
		page++
	}

	return s.syncStudents(ctx, roster)
}

// RunForStudent performs a sync pass for a single student.
func (s *SyncService) RunForStudent(ctx context.Context, studentID string) (*SyncResult, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.syncStudents(ctx, []models.Student{*student})
}

func (s *SyncService) syncStudents(ctx context.Context, students []models.Student) (*SyncResult, error) {
	now := s.now()
	result := &SyncResult{Students: len(students)}
	if len(students) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(students))
	for i := range students {
		ids = append(ids, students[i].ID)
	}

	windowStart := dayStart(now.AddDate(0, 0, -(s.config.WindowDays - 1)))
	existing, err := s.logs.FetchWindow(ctx, ids, windowStart)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[string][]models.MealLog)
	for i := range existing {
		byStudent[existing[i].StudentID] = append(byStudent[existing[i].StudentID], existing[i])
	}

	var planned []models.MealLog
	for i := range students {
		planned = append(planned, PlanBackfill(&students[i], byStudent[students[i].ID], now, s.config)...)
	}
	result.Planned = len(planned)
	if len(planned) == 0 {
		return result, nil
	}

	inserted, conflicts, err := s.logs.BulkInsert(ctx, planned)
	if err != nil {
		return nil, err
	}
	result.Inserted = inserted
	result.Conflicts = conflicts

	if s.metrics != nil {
		s.metrics.ObserveSyncResult(len(inserted), len(conflicts))
	}

	if len(conflicts) > 0 {
		s.logger.Info("attendance sync skipped occupied slots",
			zap.Int("planned", len(planned)),
			zap.Int("inserted", len(inserted)),
			zap.Int("conflicts", len(conflicts)))
	}
	return result, nil
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
