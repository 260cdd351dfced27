package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

type mockStudentRepo struct {
	students     map[string]models.Student
	existsByCode map[string]string
	deactivated  []string
	lastPrefix   string
	listTotal    int
	err          error
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	details := make([]models.StudentDetail, 0, len(m.students))
	for _, s := range m.students {
		details = append(details, models.StudentDetail{Student: s})
	}
	return details, m.listTotal, nil
}

func (m *mockStudentRepo) ListByClass(ctx context.Context, classID string) ([]models.StudentDetail, error) {
	var details []models.StudentDetail
	for _, s := range m.students {
		if s.ClassID != nil && *s.ClassID == classID {
			details = append(details, models.StudentDetail{Student: s, ClassName: strPtr("Xung Toi 1")})
		}
	}
	return details, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		detail := models.StudentDetail{Student: s}
		return &detail, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	for _, s := range m.students {
		if s.UserID != nil && *s.UserID == userID {
			detail := models.StudentDetail{Student: s}
			return &detail, nil
		}
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

func (m *mockStudentRepo) NextCode(ctx context.Context, prefix string) (string, error) {
	m.lastPrefix = prefix
	return prefix + "0001", nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	if student.ID == "" {
		student.ID = "generated"
	}
	m.students[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
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

func newTestStudentService(repo *mockStudentRepo) *StudentService {
	classes := &fakeClassLookup{classes: map[string]models.ClassDetail{"c1": {Class: models.Class{ID: "c1", Name: "Xung Toi 1"}}}}
	svc := NewStudentService(repo, classes, validator.New(), zap.NewNop(), nil)
	svc.now = func() time.Time { return time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestStudentServiceCreateGeneratesCode(t *testing.T) {
	repo := &mockStudentRepo{existsByCode: make(map[string]string)}
	svc := newTestStudentService(repo)

	student, err := svc.Create(context.Background(), StudentRequest{
		SaintName: "Maria",
		FullName:  " Nguyen Thi Hoa ",
		Gender:    models.GenderFemale,
		BirthDate: "2012-03-04",
		ClassID:   "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, "HV2024", repo.lastPrefix)
	assert.Equal(t, "HV20240001", student.StudentCode)
	assert.Equal(t, "Nguyen Thi Hoa", student.FullName)
	assert.True(t, student.Active)
	require.NotNil(t, student.BirthDate)
	assert.Equal(t, 4, student.BirthDate.Day())
	assert.Equal(t, 1, len(repo.students))
}

func TestStudentServiceCreateDuplicateCode(t *testing.T) {
	repo := &mockStudentRepo{existsByCode: map[string]string{"HV001": "another"}}
	svc := newTestStudentService(repo)

	_, err := svc.Create(context.Background(), StudentRequest{StudentCode: "HV001", FullName: "A", Gender: models.GenderMale})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceCreateValidation(t *testing.T) {
	svc := newTestStudentService(&mockStudentRepo{})

	_, err := svc.Create(context.Background(), StudentRequest{FullName: "A", Gender: "X"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), StudentRequest{FullName: "A", Gender: models.GenderMale, ClassID: "missing"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceUpdate(t *testing.T) {
	repo := &mockStudentRepo{
		students:     map[string]models.Student{"id1": {ID: "id1", StudentCode: "HV111", FullName: "Old", Gender: models.GenderMale, Active: true}},
		existsByCode: make(map[string]string),
	}
	svc := newTestStudentService(repo)

	inactive := false
	updated, err := svc.Update(context.Background(), "id1", StudentRequest{StudentCode: "HV222", FullName: "New", Gender: models.GenderFemale, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "HV222", updated.StudentCode)
	assert.Equal(t, "New", updated.FullName)
	assert.False(t, updated.Active)
}

func TestStudentServiceDeactivate(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"id1": {ID: "id1", StudentCode: "HV111", FullName: "Old", Gender: models.GenderMale, Active: true}}}
	svc := newTestStudentService(repo)

	require.NoError(t, svc.Deactivate(context.Background(), "id1"))
	assert.Contains(t, repo.deactivated, "id1")

	err := svc.Deactivate(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceForUser(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"id1": {ID: "id1", UserID: strPtr("u1")}}}
	svc := newTestStudentService(repo)

	student, err := svc.ForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "id1", student.ID)

	_, err = svc.ForUser(context.Background(), "u2")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentServiceExportCSV(t *testing.T) {
	birth := time.Date(2012, 3, 4, 0, 0, 0, 0, time.UTC)
	repo := &mockStudentRepo{students: map[string]models.Student{
		"id1": {ID: "id1", FullName: "Nguyen Van An", Gender: models.GenderMale, SaintName: strPtr("Phero"), BirthDate: &birth, ClassID: strPtr("c1")},
	}}
	svc := newTestStudentService(repo)

	out, err := svc.ExportCSV(context.Background(), "c1")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Nguyen Van An")
	assert.Contains(t, lines[1], "04/03/2012")
	assert.Contains(t, lines[1], "Xung Toi 1")
}
