package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giaoly-api/internal/models"
)

func TestAttendanceSessionStartDeactivatesThenInserts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_sessions SET active = FALSE, ended_at = $2 WHERE class_id = $1 AND active = TRUE")).
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO attendance_sessions").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	session := &models.AttendanceSession{ClassID: "c1", SessionDate: time.Date(2024, 12, 8, 0, 0, 0, 0, time.UTC), Code: "123456", CreatedBy: "u1"}
	superseded, err := repo.Start(context.Background(), session)
	require.NoError(t, err)
	assert.EqualValues(t, 1, superseded)
	assert.True(t, session.Active)
	assert.NotEmpty(t, session.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSessionStartRollsBackOnInsertConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE attendance_sessions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO attendance_sessions").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	_, err := repo.Start(context.Background(), &models.AttendanceSession{ClassID: "c1", Code: "654321", CreatedBy: "u1"})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSessionEndAlreadyInactive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND active = TRUE")).
		WithArgs("s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ended, err := repo.End(context.Background(), "s1", time.Now())
	require.NoError(t, err)
	assert.False(t, ended)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSessionFindActiveByClassAndCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE class_id = $1 AND code = $2 AND active = TRUE LIMIT 1")).
		WithArgs("c1", "000000").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveByClassAndCode(context.Background(), "c1", "000000")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSessionEndStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceSessionRepository(db)

	cutoff := time.Now().Add(-6 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("WHERE active = TRUE AND created_at < $1")).
		WithArgs(cutoff, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.EndStale(context.Background(), cutoff, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceSessionCountActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance_sessions WHERE active = TRUE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
