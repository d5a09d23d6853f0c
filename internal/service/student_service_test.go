package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/comedorapp/comedor-api/internal/models"
	appErrors "github.com/comedorapp/comedor-api/pkg/errors"
)

type mockStudentRepo struct {
	students     map[string]models.Student
	existsByCode map[string]string
	deactivated  []string
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: make(map[string]models.Student), existsByCode: make(map[string]string)}
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	if id, ok := m.existsByCode[code]; ok {
		if excludeID == "" || id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = "generated"
	}
	m.students[student.ID] = *student
	m.existsByCode[student.Code] = student.ID
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	if s, ok := m.students[id]; ok {
		s.Active = false
		m.students[id] = s
	}
	return nil
}

func TestStudentServiceCreate(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, zap.NewNop())

	student, err := svc.Create(context.Background(), SaveStudentRequest{
		Code:            "A-001",
		FirstName:       "Maria",
		LastName:        "Lopez",
		SubscribedMeals: []string{"Desayuno", "LUNCH"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, student.ID)
	assert.True(t, student.Active)
	// Labels resolve to the canonical identifiers.
	assert.Equal(t, pq.StringArray{"BREAKFAST", "LUNCH"}, student.SubscribedMeals)
}

func TestStudentServiceCreateDuplicateCode(t *testing.T) {
	repo := newMockStudentRepo()
	repo.existsByCode["A-001"] = "other"
	svc := NewStudentService(repo, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), SaveStudentRequest{Code: "A-001", FirstName: "Maria", LastName: "Lopez"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateUnknownMeal(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), nil, zap.NewNop())

	_, err := svc.Create(context.Background(), SaveStudentRequest{
		Code:            "A-002",
		FirstName:       "Juan",
		LastName:        "Perez",
		SubscribedMeals: []string{"Merienda"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdateSubscription(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["id1"] = models.Student{ID: "id1", Code: "A-001", FirstName: "Maria", LastName: "Lopez", Active: true, SubscribedMeals: pq.StringArray{"LUNCH"}}
	repo.existsByCode["A-001"] = "id1"
	svc := NewStudentService(repo, nil, zap.NewNop())

	updated, err := svc.Update(context.Background(), "id1", SaveStudentRequest{
		Code:            "A-001",
		FirstName:       "Maria",
		LastName:        "Lopez",
		SubscribedMeals: []string{"LUNCH", "DINNER"},
	})
	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"LUNCH", "DINNER"}, updated.SubscribedMeals)
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["id1"] = models.Student{ID: "id1", Code: "A-001", Active: true}
	svc := NewStudentService(repo, nil, zap.NewNop())

	require.NoError(t, svc.Deactivate(context.Background(), "id1"))
	assert.Equal(t, []string{"id1"}, repo.deactivated)
	assert.False(t, repo.students["id1"].Active)

	err := svc.Deactivate(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
