package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giaoly-api/internal/models"
)

func TestScoreRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id, class_id, type) DO UPDATE")).
		WithArgs(sqlmock.AnyArg(), "s1", "c1", "semester1", 9.0, 10.0, sqlmock.AnyArg(), "u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow("sc1", now, now))
	mock.ExpectCommit()

	scores := []models.Score{{StudentID: "s1", ClassID: "c1", Type: models.ScoreTypeSemester1, Score: 9, MaxScore: 10, Date: now, GradedBy: "u1"}}
	require.NoError(t, repo.Upsert(context.Background(), scores))
	assert.Equal(t, "sc1", scores[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScoreRepositoryListByClass(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewScoreRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM scores WHERE 1=1 AND class_id = $1 ORDER BY student_id, type")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "class_id", "type", "score", "max_score", "date", "graded_by", "created_at", "updated_at"}).
			AddRow("sc1", "s1", "c1", "presentation", 8.0, 10.0, now, "u1", now, now))

	scores, err := repo.List(context.Background(), models.ScoreFilter{ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, models.ScoreTypePresentation, scores[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}
