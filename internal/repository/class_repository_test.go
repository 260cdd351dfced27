package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giaoly-api/internal/models"
)

func TestClassRepositoryListFiltersByYearAndCatechist(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "academic_year_id", "description", "created_at", "updated_at", "academic_year_name", "student_count"}).
		AddRow("c1", "Xưng Tội 1", "y1", nil, now, now, "2024-2025", 18)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND c.academic_year_id = $1 AND EXISTS (SELECT 1 FROM class_catechists cc WHERE cc.class_id = c.id AND cc.catechist_id = $2) ORDER BY c.name ASC LIMIT 20 OFFSET 0")).
		WithArgs("y1", "ct1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM classes c WHERE 1=1")).
		WithArgs("y1", "ct1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	classes, total, err := repo.List(context.Background(), models.ClassFilter{AcademicYearID: "y1", CatechistID: "ct1"})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, 18, classes[0].StudentCount)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryAssignCatechistUpserts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	created := time.Now().Add(-time.Hour)
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (class_id, catechist_id) DO UPDATE SET is_primary = EXCLUDED.is_primary")).
		WithArgs(sqlmock.AnyArg(), "c1", "ct1", true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("existing", created))

	assignment := &models.ClassCatechist{ClassID: "c1", CatechistID: "ct1", IsPrimary: true}
	require.NoError(t, repo.AssignCatechist(context.Background(), assignment))
	assert.Equal(t, "existing", assignment.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryIsAssignedToUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery("FROM class_catechists cc JOIN catechists ct").
		WithArgs("c1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))
	mock.ExpectQuery("FROM class_catechists cc JOIN catechists ct").
		WithArgs("c1", "u2").
		WillReturnError(sql.ErrNoRows)

	ok, err := repo.IsAssignedToUser(context.Background(), "c1", "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsAssignedToUser(context.Background(), "c1", "u2")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryUnassignReportsMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectExec("DELETE FROM class_catechists").
		WithArgs("c1", "ct9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := repo.UnassignCatechist(context.Background(), "c1", "ct9")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
