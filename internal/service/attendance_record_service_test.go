package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

type fakeAttendanceRepo struct {
	saved      []models.AttendanceRecord
	lastFilter models.AttendanceRecordFilter
}

func (f *fakeAttendanceRepo) List(ctx context.Context, filter models.AttendanceRecordFilter) ([]models.AttendanceRecordDetail, error) {
	f.lastFilter = filter
	return nil, nil
}

func (f *fakeAttendanceRepo) Upsert(ctx context.Context, records []models.AttendanceRecord) error {
	f.saved = append(f.saved, records...)
	return nil
}

// fakeEnrollment maps student id to the class it is enrolled in.
type fakeEnrollment struct {
	classOf map[string]string
}

func (f *fakeEnrollment) StudentsOutsideClass(ctx context.Context, classID string, studentIDs []string) ([]string, error) {
	var outside []string
	for _, id := range studentIDs {
		if f.classOf[id] != classID {
			outside = append(outside, id)
		}
	}
	return outside, nil
}

func testEnrollment() *fakeEnrollment {
	return &fakeEnrollment{classOf: map[string]string{"st1": "c1", "st2": "c1", "st-c2": "c2"}}
}

func TestAttendanceRecordServiceSave(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	cache, cacheRepo := newMemoryCache()
	svc := NewAttendanceRecordService(repo, &fakeAssignments{assigned: map[string]bool{"c1|glv-1": true}}, testEnrollment(), cache, nil, nil)

	n, err := svc.Save(context.Background(), glvClaims("glv-1"), SaveAttendanceRequest{
		ClassID: "c1",
		Date:    "2024-05-12",
		Items: []AttendanceItem{
			{StudentID: "st1", Status: "present"},
			{StudentID: "st2", Status: "excused", Note: " sick "},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, repo.saved, 2)
	assert.Equal(t, "glv-1", repo.saved[0].RecordedBy)
	assert.Equal(t, time.Date(2024, 5, 12, 0, 0, 0, 0, time.UTC), repo.saved[0].Date)
	require.NotNil(t, repo.saved[1].Note)
	assert.Equal(t, "sick", *repo.saved[1].Note)
	assert.Contains(t, cacheRepo.deleted, reportCacheKey("c1"))
	assert.Contains(t, cacheRepo.deleted, dashboardCachePattern)
}

func TestAttendanceRecordServiceSaveRejects(t *testing.T) {
	svc := NewAttendanceRecordService(&fakeAttendanceRepo{}, &fakeAssignments{}, testEnrollment(), nil, nil, nil)

	cases := []struct {
		name   string
		claims *models.JWTClaims
		req    SaveAttendanceRequest
		code   string
	}{
		{
			name:   "unknown status",
			claims: adminClaims(),
			req:    SaveAttendanceRequest{ClassID: "c1", Date: "2024-05-12", Items: []AttendanceItem{{StudentID: "st1", Status: "sleeping"}}},
			code:   appErrors.ErrValidation.Code,
		},
		{
			name:   "duplicate student",
			claims: adminClaims(),
			req: SaveAttendanceRequest{ClassID: "c1", Date: "2024-05-12", Items: []AttendanceItem{
				{StudentID: "st1", Status: "present"}, {StudentID: "st1", Status: "absent"},
			}},
			code: appErrors.ErrValidation.Code,
		},
		{
			name:   "bad date",
			claims: adminClaims(),
			req:    SaveAttendanceRequest{ClassID: "c1", Date: "12/05/2024", Items: []AttendanceItem{{StudentID: "st1", Status: "present"}}},
			code:   appErrors.ErrValidation.Code,
		},
		{
			name:   "student from another class",
			claims: adminClaims(),
			req:    SaveAttendanceRequest{ClassID: "c1", Date: "2024-05-12", Items: []AttendanceItem{{StudentID: "st-c2", Status: "present"}}},
			code:   appErrors.ErrForbidden.Code,
		},
		{
			name:   "not assigned",
			claims: glvClaims("glv-2"),
			req:    SaveAttendanceRequest{ClassID: "c1", Date: "2024-05-12", Items: []AttendanceItem{{StudentID: "st1", Status: "present"}}},
			code:   appErrors.ErrForbidden.Code,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Save(context.Background(), tc.claims, tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.code, appErrors.FromError(err).Code)
		})
	}
}

func TestAttendanceRecordServiceList(t *testing.T) {
	repo := &fakeAttendanceRepo{}
	svc := NewAttendanceRecordService(repo, &fakeAssignments{}, testEnrollment(), nil, nil, nil)

	_, err := svc.List(context.Background(), adminClaims(), AttendanceRecordQuery{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.List(context.Background(), adminClaims(), AttendanceRecordQuery{ClassID: "c1", DateFrom: "2024-05-01", DateTo: "2024-05-31"})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter.DateFrom)
	require.NotNil(t, repo.lastFilter.DateTo)
	assert.Nil(t, repo.lastFilter.Date)
	assert.Equal(t, 31, repo.lastFilter.DateTo.Day())
}

type fakeMassRepo struct {
	saved    []models.MassAttendance
	replaced *models.MassAttendance
	previous *string
}

func (f *fakeMassRepo) List(ctx context.Context, filter models.MassAttendanceFilter) ([]models.MassAttendance, error) {
	return f.saved, nil
}

func (f *fakeMassRepo) Upsert(ctx context.Context, records []models.MassAttendance) error {
	f.saved = append(f.saved, records...)
	return nil
}

func (f *fakeMassRepo) Replace(ctx context.Context, record *models.MassAttendance) (*string, error) {
	f.replaced = record
	return f.previous, nil
}

func newTestMassService(repo *fakeMassRepo) *MassAttendanceService {
	students := &fakeStudentsByUser{students: map[string]models.StudentDetail{
		"stu-user": {Student: models.Student{ID: "st1", ClassID: strPtr("c1")}},
	}}
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		loc = time.FixedZone("ICT", 7*3600)
	}
	svc := NewMassAttendanceService(repo, students, &fakeAssignments{assigned: map[string]bool{"c1|glv-1": true}}, testEnrollment(), nil, nil, nil, loc)
	// Saturday 2024-05-18 20:00 UTC is already Sunday morning in Vietnam.
	svc.now = func() time.Time { return time.Date(2024, 5, 18, 20, 0, 0, 0, time.UTC) }
	return svc
}

func TestMassAttendanceServiceSave(t *testing.T) {
	repo := &fakeMassRepo{}
	svc := newTestMassService(repo)

	n, err := svc.Save(context.Background(), adminClaims(), SaveMassRequest{
		ClassID: "c1",
		Date:    "2024-05-12",
		Items:   []MassItem{{StudentID: "st1", Attended: true}, {StudentID: "st2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, repo.saved[1].Attended)

	_, err = svc.Save(context.Background(), adminClaims(), SaveMassRequest{
		ClassID: "c1",
		Date:    "2024-05-12",
		Items:   []MassItem{{StudentID: "st1"}, {StudentID: "st1", Attended: true}},
	})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestMassAttendanceServiceSaveRejectsStudentOfAnotherClass(t *testing.T) {
	repo := &fakeMassRepo{}
	svc := newTestMassService(repo)

	_, err := svc.Save(context.Background(), glvClaims("glv-1"), SaveMassRequest{
		ClassID: "c1",
		Date:    "2024-05-12",
		Items:   []MassItem{{StudentID: "st1", Attended: true}, {StudentID: "st-c2", Attended: true}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "st-c2")
	assert.Empty(t, repo.saved)
}

func TestMassAttendanceServiceSelfReport(t *testing.T) {
	repo := &fakeMassRepo{}
	svc := newTestMassService(repo)

	res, err := svc.SelfReport(context.Background(), studentClaims("stu-user"))
	require.NoError(t, err)
	assert.False(t, res.ReplacedStaffRecord)
	require.NotNil(t, repo.replaced)
	assert.Equal(t, time.Date(2024, 5, 19, 0, 0, 0, 0, time.UTC), repo.replaced.Date)
	assert.True(t, repo.replaced.Attended)
	assert.Equal(t, "stu-user", repo.replaced.RecordedBy)
}

func TestMassAttendanceServiceSelfReportReplacesStaffRow(t *testing.T) {
	repo := &fakeMassRepo{previous: strPtr("glv-1")}
	svc := newTestMassService(repo)

	res, err := svc.SelfReport(context.Background(), studentClaims("stu-user"))
	require.NoError(t, err)
	assert.True(t, res.ReplacedStaffRecord)

	repo.previous = strPtr("stu-user")
	res, err = svc.SelfReport(context.Background(), studentClaims("stu-user"))
	require.NoError(t, err)
	assert.False(t, res.ReplacedStaffRecord)
}

func TestMassAttendanceServiceSelfReportWithoutStudent(t *testing.T) {
	svc := newTestMassService(&fakeMassRepo{})
	_, err := svc.SelfReport(context.Background(), studentClaims("ghost"))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

type fakeScoreRepo struct {
	saved []models.Score
}

func (f *fakeScoreRepo) List(ctx context.Context, filter models.ScoreFilter) ([]models.Score, error) {
	return f.saved, nil
}

func (f *fakeScoreRepo) Upsert(ctx context.Context, scores []models.Score) error {
	f.saved = append(f.saved, scores...)
	return nil
}

func TestScoreServiceSave(t *testing.T) {
	repo := &fakeScoreRepo{}
	svc := NewScoreService(repo, &fakeAssignments{assigned: map[string]bool{"c1|glv-1": true}}, testEnrollment(), nil, nil, nil)

	n, err := svc.Save(context.Background(), glvClaims("glv-1"), SaveScoresRequest{
		ClassID: "c1",
		Items: []ScoreItem{
			{StudentID: "st1", Type: "semester1", Score: 8, MaxScore: 10, Date: "2024-01-14"},
			{StudentID: "st1", Type: "presentation", Score: 0, MaxScore: 10, Date: "2024-01-14"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, models.ScoreTypeSemester1, repo.saved[0].Type)
	assert.Equal(t, "glv-1", repo.saved[0].GradedBy)
}

func TestScoreServiceSaveRejectsInvalidScores(t *testing.T) {
	svc := NewScoreService(&fakeScoreRepo{}, &fakeAssignments{}, testEnrollment(), nil, nil, nil)

	items := [][]ScoreItem{
		{{StudentID: "st1", Type: "semester1", Score: 11, MaxScore: 10, Date: "2024-01-14"}},
		{{StudentID: "st1", Type: "semester1", Score: -1, MaxScore: 10, Date: "2024-01-14"}},
		{{StudentID: "st1", Type: "midterm", Score: 5, MaxScore: 10, Date: "2024-01-14"}},
		{{StudentID: "st1", Type: "semester2", Score: 5, MaxScore: 0, Date: "2024-01-14"}},
	}
	for _, batch := range items {
		_, err := svc.Save(context.Background(), adminClaims(), SaveScoresRequest{ClassID: "c1", Items: batch})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestScoreServiceSaveRejectsStudentOfAnotherClass(t *testing.T) {
	repo := &fakeScoreRepo{}
	svc := NewScoreService(repo, &fakeAssignments{assigned: map[string]bool{"c1|glv-1": true}}, testEnrollment(), nil, nil, nil)

	_, err := svc.Save(context.Background(), glvClaims("glv-1"), SaveScoresRequest{
		ClassID: "c1",
		Items:   []ScoreItem{{StudentID: "st-c2", Type: "semester1", Score: 9, MaxScore: 10, Date: "2024-01-14"}},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.saved)
}
