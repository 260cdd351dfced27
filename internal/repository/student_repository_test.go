package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/giaoly-api/internal/models"
)

var studentRowColumns = []string{"id", "student_code", "saint_name", "full_name", "gender", "birth_date", "address", "parent_phone", "class_id", "user_id", "active", "created_at", "updated_at", "class_name"}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("1", "HS0001", "Phêrô", "Trần Văn An", models.GenderMale, now, "Thủ Đức", nil, "c1", nil, true, now, now, "Rước Lễ 1")
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s LEFT JOIN classes c ON c.id = s.class_id WHERE 1=1 AND s.class_id = $1 ORDER BY s.full_name ASC LIMIT 20 OFFSET 0")).
		WithArgs("c1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s LEFT JOIN classes c ON c.id = s.class_id WHERE 1=1 AND s.class_id = $1")).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Rước Lễ 1", *students[0].ClassName)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	args := make([]driver.Value, 13)
	for i := range args {
		args[i] = sqlmock.AnyArg()
	}
	mock.ExpectExec("INSERT INTO students").
		WithArgs(args...).
		WillReturnResult(sqlmock.NewResult(1, 1))

	birth := time.Date(2012, 3, 5, 0, 0, 0, 0, time.UTC)
	err := repo.Create(context.Background(), &models.Student{StudentCode: "HS0001", FullName: "Trần Văn An", Gender: models.GenderMale, BirthDate: &birth, Active: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByUserID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.user_id = $1 LIMIT 1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(studentRowColumns).
			AddRow("s1", "HS0002", nil, "Lê Thị Bình", models.GenderFemale, nil, nil, nil, "c1", "u1", true, now, now, "Rước Lễ 1"))

	student, err := repo.FindByUserID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "s1", student.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryNextCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE student_code LIKE $1")).
		WithArgs("HS%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(41))

	code, err := repo.NextCode(context.Background(), "HS")
	require.NoError(t, err)
	assert.Equal(t, "HS0042", code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryStudentsOutsideClass(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM students WHERE class_id = $1 AND active = TRUE AND id = ANY($2)")).
		WithArgs("c1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("st1"))

	outside, err := repo.StudentsOutsideClass(context.Background(), "c1", []string{"st1", "st-c2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"st-c2"}, outside)
	assert.NoError(t, mock.ExpectationsWereMet())

	none, err := repo.StudentsOutsideClass(context.Background(), "c1", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}
