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

func TestCatechistRepositoryListActiveSearch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCatechistRepository(db)

	active := true
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM catechists WHERE 1=1 AND active = $1 AND (LOWER(full_name) LIKE $2")).
		WithArgs(true, "%lan%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "saint_name", "full_name", "phone", "email", "address", "active", "created_at", "updated_at"}).
			AddRow("ct1", nil, "Maria", "Nguyễn Thị Lan", "0909", "lan@giaoly.vn", nil, true, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM catechists WHERE 1=1 AND active = $1")).
		WithArgs(true, "%lan%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.CatechistFilter{Active: &active, Search: "Lan"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatechistRepositoryLinkUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCatechistRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE catechists SET user_id = $2")).
		WithArgs("ct1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.LinkUser(context.Background(), "ct1", "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
