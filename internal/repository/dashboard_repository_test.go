package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardRepositoryCounts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	mock.ExpectQuery("AS active_sessions").
		WithArgs("y1").
		WillReturnRows(sqlmock.NewRows([]string{"students", "classes", "catechists", "active_sessions"}).AddRow(120, 8, 15, 2))

	counts, err := repo.Counts(context.Background(), "y1")
	require.NoError(t, err)
	assert.Equal(t, 120, counts.Students)
	assert.Equal(t, 2, counts.ActiveSessions)
	assert.NoError(t, mock.ExpectationsWereMet())
}
