package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/comedorapp/comedor-api/internal/models"
	"github.com/comedorapp/comedor-api/internal/service"
)

type fakeMealLogRepo struct {
	logs  []models.MealLog
	slots map[string]bool
}

func newFakeMealLogRepo() *fakeMealLogRepo {
	return &fakeMealLogRepo{slots: make(map[string]bool)}
}

func (f *fakeMealLogRepo) List(ctx context.Context, filter models.MealLogFilter) ([]models.MealLog, int, error) {
	out := make([]models.MealLog, 0, len(f.logs))
	for _, l := range f.logs {
		if filter.StudentID != "" && l.StudentID != filter.StudentID {
			continue
		}
		out = append(out, l)
	}
	return out, len(out), nil
}

func (f *fakeMealLogRepo) FindByID(ctx context.Context, id string) (*models.MealLog, error) {
	for i := range f.logs {
		if f.logs[i].ID == id {
			return &f.logs[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMealLogRepo) Insert(ctx context.Context, log *models.MealLog) (*models.MealLog, error) {
	key := log.StudentID + "|" + string(log.MealType) + "|" + log.Day()
	if f.slots[key] {
		return nil, sql.ErrNoRows
	}
	f.slots[key] = true
	stored := *log
	stored.ID = "generated"
	f.logs = append(f.logs, stored)
	return &stored, nil
}

func (f *fakeMealLogRepo) ToggleAnnul(ctx context.Context, id string) (*models.MealLog, error) {
	for i := range f.logs {
		if f.logs[i].ID == id {
			if f.logs[i].Status == models.StatusAnnulled {
				f.logs[i].Status = models.StatusVerified
			} else {
				f.logs[i].Status = models.StatusAnnulled
			}
			return &f.logs[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMealLogRepo) SetExtra(ctx context.Context, id string, hasExtra bool, notes *string) (*models.MealLog, error) {
	for i := range f.logs {
		if f.logs[i].ID == id {
			f.logs[i].HasExtra = hasExtra
			f.logs[i].ExtraNotes = notes
			return &f.logs[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeMealLogRepo) Delete(ctx context.Context, id string) error {
	for i := range f.logs {
		if f.logs[i].ID == id {
			f.logs = append(f.logs[:i], f.logs[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

type noopSyncer struct{}

func (noopSyncer) Run(ctx context.Context) (*service.SyncResult, error) {
	return &service.SyncResult{}, nil
}

func (noopSyncer) RunForStudent(ctx context.Context, studentID string) (*service.SyncResult, error) {
	return &service.SyncResult{}, nil
}

func setupAttendanceRouter(repo *fakeMealLogRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	wednesday := time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)
	svc := service.NewAttendanceService(repo, noopSyncer{}, nil, zap.NewNop(), time.Saturday, func() time.Time { return wednesday })
	h := NewAttendanceHandler(svc)

	r := gin.New()
	r.GET("/attendance", h.List)
	r.POST("/attendance", h.Mark)
	r.PATCH("/attendance/:id/annul", h.ToggleAnnul)
	r.DELETE("/attendance/:id", h.Delete)
	return r
}

func performJSON(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAttendanceHandlerMark(t *testing.T) {
	r := setupAttendanceRouter(newFakeMealLogRepo())

	w := performJSON(r, http.MethodPost, "/attendance", gin.H{
		"student_id": "s1",
		"meal_type":  "Almuerzo",
		"status":     "Verificado",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.MealLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "s1", envelope.Data.StudentID)
	assert.Equal(t, models.MealLunch, envelope.Data.MealType)
	assert.Equal(t, models.StatusVerified, envelope.Data.Status)
}

func TestAttendanceHandlerMarkDuplicate(t *testing.T) {
	r := setupAttendanceRouter(newFakeMealLogRepo())

	payload := gin.H{"student_id": "s1", "meal_type": "LUNCH", "status": "Verificado"}
	w := performJSON(r, http.MethodPost, "/attendance", payload)
	require.Equal(t, http.StatusCreated, w.Code)

	w = performJSON(r, http.MethodPost, "/attendance", payload)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "CONFLICT", envelope.Error.Code)
}

func TestAttendanceHandlerMarkNonServiceDay(t *testing.T) {
	r := setupAttendanceRouter(newFakeMealLogRepo())

	saturday := time.Date(2026, 1, 10, 13, 0, 0, 0, time.UTC)
	w := performJSON(r, http.MethodPost, "/attendance", gin.H{
		"student_id": "s1",
		"meal_type":  "LUNCH",
		"status":     "Verificado",
		"timestamp":  saturday.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "NON_SERVICE_DAY", envelope.Error.Code)
}

func TestAttendanceHandlerList(t *testing.T) {
	repo := newFakeMealLogRepo()
	repo.logs = []models.MealLog{
		{ID: "l1", StudentID: "s1", MealType: models.MealLunch, Status: models.StatusVerified, Timestamp: time.Date(2026, 1, 7, 13, 0, 0, 0, time.UTC)},
	}
	r := setupAttendanceRouter(repo)

	w := performJSON(r, http.MethodGet, "/attendance?studentId=s1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data       []models.MealLog   `json:"data"`
		Pagination *models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "l1", envelope.Data[0].ID)
	require.NotNil(t, envelope.Pagination)
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}

func TestAttendanceHandlerDeleteMissing(t *testing.T) {
	r := setupAttendanceRouter(newFakeMealLogRepo())

	w := performJSON(r, http.MethodDelete, "/attendance/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
