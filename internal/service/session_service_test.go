package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giaoly-api/internal/models"
	appErrors "github.com/noah-isme/giaoly-api/pkg/errors"
)

type fakeSessionRepo struct {
	sessions   map[string]*models.AttendanceSession
	startErrs  []error
	startCalls int
	endStale   int64
	cutoff     time.Time
}

func (f *fakeSessionRepo) Start(ctx context.Context, session *models.AttendanceSession) (int64, error) {
	f.startCalls++
	if len(f.startErrs) > 0 {
		err := f.startErrs[0]
		f.startErrs = f.startErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	var superseded int64
	for _, s := range f.sessions {
		if s.ClassID == session.ClassID && s.Active {
			s.Active = false
			superseded++
		}
	}
	session.ID = "s" + strconv.Itoa(len(f.sessions)+1)
	if f.sessions == nil {
		f.sessions = map[string]*models.AttendanceSession{}
	}
	clone := *session
	f.sessions[session.ID] = &clone
	return superseded, nil
}

func (f *fakeSessionRepo) End(ctx context.Context, id string, endedAt time.Time) (bool, error) {
	s, ok := f.sessions[id]
	if !ok || !s.Active {
		return false, nil
	}
	s.Active = false
	s.EndedAt = &endedAt
	return true, nil
}

func (f *fakeSessionRepo) EndStale(ctx context.Context, cutoff, endedAt time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.endStale, nil
}

func (f *fakeSessionRepo) CountActive(ctx context.Context) (int, error) {
	count := 0
	for _, s := range f.sessions {
		if s.Active {
			count++
		}
	}
	return count, nil
}

func (f *fakeSessionRepo) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	if s, ok := f.sessions[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSessionRepo) FindActiveByClass(ctx context.Context, classID string) (*models.AttendanceSession, error) {
	for _, s := range f.sessions {
		if s.ClassID == classID && s.Active {
			clone := *s
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSessionRepo) FindActiveByClassAndCode(ctx context.Context, classID, code string) (*models.AttendanceSession, error) {
	for _, s := range f.sessions {
		if s.ClassID == classID && s.Active && s.Code == code {
			clone := *s
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSessionRepo) List(ctx context.Context, filter models.AttendanceSessionFilter) ([]models.AttendanceSession, int, error) {
	var out []models.AttendanceSession
	for _, s := range f.sessions {
		if filter.ClassID == "" || s.ClassID == filter.ClassID {
			out = append(out, *s)
		}
	}
	return out, len(out), nil
}

type fakeCheckInRecords struct {
	records map[string]models.AttendanceRecord
	raced   bool
}

func checkInKey(studentID, classID string, date time.Time) string {
	return studentID + "|" + classID + "|" + date.Format("2006-01-02")
}

func (f *fakeCheckInRecords) Exists(ctx context.Context, studentID, classID string, date time.Time) (bool, error) {
	_, ok := f.records[checkInKey(studentID, classID, date)]
	return ok, nil
}

func (f *fakeCheckInRecords) InsertIfAbsent(ctx context.Context, record *models.AttendanceRecord) (bool, error) {
	if f.raced {
		return false, nil
	}
	if f.records == nil {
		f.records = map[string]models.AttendanceRecord{}
	}
	key := checkInKey(record.StudentID, record.ClassID, record.Date)
	if _, ok := f.records[key]; ok {
		return false, nil
	}
	f.records[key] = *record
	return true, nil
}

type fakeStudentsByUser struct {
	students map[string]models.StudentDetail
}

func (f *fakeStudentsByUser) FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	if s, ok := f.students[userID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type fakeAssignments struct {
	assigned map[string]bool
}

func (f *fakeAssignments) IsAssignedToUser(ctx context.Context, classID, userID string) (bool, error) {
	return f.assigned[classID+"|"+userID], nil
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func glvClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleGLV}
}

func studentClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleStudent}
}

func strPtr(s string) *string { return &s }

func newTestSessionService(repo *fakeSessionRepo, records *fakeCheckInRecords, students *fakeStudentsByUser) *SessionService {
	svc := NewSessionService(SessionServiceParams{
		Sessions: repo,
		Records:  records,
		Students: students,
		Classes:  &fakeAssignments{assigned: map[string]bool{"c1|glv-1": true}},
		Metrics:  NewMetricsService(),
		Config:   SessionServiceConfig{MaxAge: 6 * time.Hour},
	})
	// Wednesday 2024-05-15 10:00 UTC
	svc.now = func() time.Time { return time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestGenerateCheckInCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCheckInCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestSessionServiceSessionDateIsMostRecentSunday(t *testing.T) {
	svc := newTestSessionService(&fakeSessionRepo{}, &fakeCheckInRecords{}, &fakeStudentsByUser{})
	date := svc.SessionDate()
	assert.Equal(t, time.Sunday, date.Weekday())
	assert.Equal(t, 12, date.Day())
}

func TestSessionServiceStartSupersedesActive(t *testing.T) {
	repo := &fakeSessionRepo{}
	svc := newTestSessionService(repo, &fakeCheckInRecords{}, &fakeStudentsByUser{})
	svc.newCode = func() (string, error) { return "123456", nil }

	first, err := svc.Start(context.Background(), glvClaims("glv-1"), StartSessionRequest{ClassID: "c1"})
	require.NoError(t, err)
	second, err := svc.Start(context.Background(), glvClaims("glv-1"), StartSessionRequest{ClassID: "c1"})
	require.NoError(t, err)

	assert.False(t, repo.sessions[first.ID].Active)
	assert.True(t, repo.sessions[second.ID].Active)
	assert.Equal(t, "glv-1", second.CreatedBy)
	assert.Equal(t, time.Sunday, second.SessionDate.Weekday())
}

func TestSessionServiceOpenSessionsGaugeFollowsStartAndEnd(t *testing.T) {
	repo := &fakeSessionRepo{}
	svc := newTestSessionService(repo, &fakeCheckInRecords{}, &fakeStudentsByUser{})
	svc.cfg.MaxAge = 0
	ctx := context.Background()

	first, err := svc.Start(ctx, adminClaims(), StartSessionRequest{ClassID: "c1"})
	require.NoError(t, err)
	_, err = svc.Start(ctx, adminClaims(), StartSessionRequest{ClassID: "c2"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, svc.metrics.Snapshot().SessionsOpen)

	_, err = svc.End(ctx, adminClaims(), first.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, svc.metrics.Snapshot().SessionsOpen)
}

func TestSessionServiceStartRejectsUnassignedCatechist(t *testing.T) {
	svc := newTestSessionService(&fakeSessionRepo{}, &fakeCheckInRecords{}, &fakeStudentsByUser{})
	_, err := svc.Start(context.Background(), glvClaims("glv-2"), StartSessionRequest{ClassID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceStartRetriesOnUniqueViolation(t *testing.T) {
	repo := &fakeSessionRepo{startErrs: []error{&pq.Error{Code: "23505"}}}
	svc := newTestSessionService(repo, &fakeCheckInRecords{}, &fakeStudentsByUser{})

	session, err := svc.Start(context.Background(), adminClaims(), StartSessionRequest{ClassID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.startCalls)
	assert.True(t, session.Active)
}

func TestSessionServiceStartConflictAfterRetry(t *testing.T) {
	violation := &pq.Error{Code: "23505"}
	repo := &fakeSessionRepo{startErrs: []error{violation, violation}}
	svc := newTestSessionService(repo, &fakeCheckInRecords{}, &fakeStudentsByUser{})

	_, err := svc.Start(context.Background(), adminClaims(), StartSessionRequest{ClassID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceEndIsIdempotent(t *testing.T) {
	repo := &fakeSessionRepo{}
	svc := newTestSessionService(repo, &fakeCheckInRecords{}, &fakeStudentsByUser{})
	session, err := svc.Start(context.Background(), adminClaims(), StartSessionRequest{ClassID: "c1"})
	require.NoError(t, err)

	ended, err := svc.End(context.Background(), adminClaims(), session.ID)
	require.NoError(t, err)
	assert.False(t, ended.Active)
	require.NotNil(t, ended.EndedAt)

	again, err := svc.End(context.Background(), adminClaims(), session.ID)
	require.NoError(t, err)
	assert.False(t, again.Active)
	assert.Equal(t, ended.EndedAt.Unix(), again.EndedAt.Unix())
}

func TestSessionServiceCheckIn(t *testing.T) {
	repo := &fakeSessionRepo{}
	records := &fakeCheckInRecords{}
	students := &fakeStudentsByUser{students: map[string]models.StudentDetail{
		"stu-user": {Student: models.Student{ID: "st1", ClassID: strPtr("c1"), Active: true}},
	}}
	svc := newTestSessionService(repo, records, students)
	svc.newCode = func() (string, error) { return "482913", nil }
	session, err := svc.Start(context.Background(), adminClaims(), StartSessionRequest{ClassID: "c1"})
	require.NoError(t, err)

	record, err := svc.CheckIn(context.Background(), studentClaims("stu-user"), CheckInRequest{Code: "482913"})
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusPresent, record.Status)
	assert.Equal(t, "st1", record.StudentID)
	assert.Equal(t, "stu-user", record.RecordedBy)
	assert.True(t, record.Date.Equal(session.SessionDate))

	_, err = svc.CheckIn(context.Background(), studentClaims("stu-user"), CheckInRequest{Code: "482913"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyCheckedIn.Code, appErrors.FromError(err).Code)
	assert.Len(t, records.records, 1)

	snapshot := svc.metrics.Snapshot()
	assert.EqualValues(t, 1, snapshot.CheckIns)
	assert.EqualValues(t, 1, snapshot.CheckInsRejected)
}

func TestSessionServiceCheckInInvalidCode(t *testing.T) {
	repo := &fakeSessionRepo{}
	students := &fakeStudentsByUser{students: map[string]models.StudentDetail{
		"stu-user": {Student: models.Student{ID: "st1", ClassID: strPtr("c1")}},
		"other":    {Student: models.Student{ID: "st2", ClassID: strPtr("c2")}},
		"no-class": {Student: models.Student{ID: "st3"}},
	}}
	svc := newTestSessionService(repo, &fakeCheckInRecords{}, students)
	svc.newCode = func() (string, error) { return "111111", nil }
	session, err := svc.Start(context.Background(), adminClaims(), StartSessionRequest{ClassID: "c1"})
	require.NoError(t, err)

	cases := []struct {
		name string
		user string
		code string
	}{
		{name: "wrong code", user: "stu-user", code: "222222"},
		{name: "malformed", user: "stu-user", code: "12ab"},
		{name: "other class", user: "other", code: "111111"},
		{name: "no class", user: "no-class", code: "111111"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CheckIn(context.Background(), studentClaims(tc.user), CheckInRequest{Code: tc.code})
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrInvalidCheckInCode.Code, appErrors.FromError(err).Code)
		})
	}

	_, err = svc.End(context.Background(), adminClaims(), session.ID)
	require.NoError(t, err)
	_, err = svc.CheckIn(context.Background(), studentClaims("stu-user"), CheckInRequest{Code: "111111"})
	assert.Equal(t, appErrors.ErrInvalidCheckInCode.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceCheckInLostRace(t *testing.T) {
	repo := &fakeSessionRepo{}
	students := &fakeStudentsByUser{students: map[string]models.StudentDetail{
		"stu-user": {Student: models.Student{ID: "st1", ClassID: strPtr("c1")}},
	}}
	svc := newTestSessionService(repo, &fakeCheckInRecords{raced: true}, students)
	svc.newCode = func() (string, error) { return "333333", nil }
	_, err := svc.Start(context.Background(), adminClaims(), StartSessionRequest{ClassID: "c1"})
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), studentClaims("stu-user"), CheckInRequest{Code: "333333"})
	assert.Equal(t, appErrors.ErrAlreadyCheckedIn.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceCheckInWithoutStudentProfile(t *testing.T) {
	svc := newTestSessionService(&fakeSessionRepo{}, &fakeCheckInRecords{}, &fakeStudentsByUser{})
	_, err := svc.CheckIn(context.Background(), studentClaims("ghost"), CheckInRequest{Code: "123456"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestSessionServiceActiveReturnsNilWhenClosed(t *testing.T) {
	svc := newTestSessionService(&fakeSessionRepo{}, &fakeCheckInRecords{}, &fakeStudentsByUser{})
	session, err := svc.Active(context.Background(), adminClaims(), "c1")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSessionServiceListRequiresClassForCatechist(t *testing.T) {
	svc := newTestSessionService(&fakeSessionRepo{}, &fakeCheckInRecords{}, &fakeStudentsByUser{})
	_, _, err := svc.List(context.Background(), glvClaims("glv-1"), models.AttendanceSessionFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, page, err := svc.List(context.Background(), glvClaims("glv-1"), models.AttendanceSessionFilter{ClassID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
}

func TestSessionServiceQRCode(t *testing.T) {
	repo := &fakeSessionRepo{}
	svc := newTestSessionService(repo, &fakeCheckInRecords{}, &fakeStudentsByUser{})
	svc.cfg.CheckInURL = "https://giaoly.example/check-in"
	session, err := svc.Start(context.Background(), adminClaims(), StartSessionRequest{ClassID: "c1"})
	require.NoError(t, err)

	png, err := svc.QRCode(context.Background(), adminClaims(), session.ID)
	require.NoError(t, err)
	require.Greater(t, len(png), 8)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
	assert.Equal(t, "https://giaoly.example/check-in?code="+session.Code, svc.qrContent(session.Code))
}

func TestSessionServiceReapStale(t *testing.T) {
	repo := &fakeSessionRepo{endStale: 2, sessions: map[string]*models.AttendanceSession{
		"s-open": {ID: "s-open", ClassID: "c1", Active: true},
	}}
	svc := newTestSessionService(repo, &fakeCheckInRecords{}, &fakeStudentsByUser{})

	n, err := svc.ReapStale(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, time.Date(2024, 5, 15, 4, 0, 0, 0, time.UTC), repo.cutoff)
	assert.EqualValues(t, 2, svc.metrics.Snapshot().SessionsReaped)
	assert.EqualValues(t, 1, svc.metrics.Snapshot().SessionsOpen)

	svc.cfg.MaxAge = 0
	n, err = svc.ReapStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSessionServiceStartReaperDisabled(t *testing.T) {
	svc := newTestSessionService(&fakeSessionRepo{}, &fakeCheckInRecords{}, &fakeStudentsByUser{})
	svc.cfg.MaxAge = 0
	c, err := svc.StartReaper("@every 5m")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSessionServiceStartReaperInvalidSpec(t *testing.T) {
	svc := newTestSessionService(&fakeSessionRepo{}, &fakeCheckInRecords{}, &fakeStudentsByUser{})
	_, err := svc.StartReaper("not a spec")
	require.Error(t, err)
	assert.False(t, errors.Is(err, sql.ErrNoRows))
}
