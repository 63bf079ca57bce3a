package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edubridge-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestAttendanceAppend(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("INSERT INTO attendance_records").WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.AttendanceRecord{
		StudentID:   "s1",
		StudentName: "Asha",
		RollNumber:  "42",
		Code:        "K3X9PQ",
		Section:     "A",
		SubmittedAt: time.Now(),
	}
	err := repo.Append(context.Background(), record)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceExists(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM attendance_records WHERE student_id = $1 AND code = $2")).
		WithArgs("s1", "K3X9PQ").
		WillReturnRows(rows)

	exists, err := repo.Exists(context.Background(), "s1", "K3X9PQ")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows([]string{"id", "student_id", "student_name", "roll_number", "code", "section", "submitted_at"}).
		AddRow("1", "s1", "Asha", "42", "K3X9PQ", "A", now).
		AddRow("2", "s2", "Bilal", "7", "K3X9PQ", "A", now.Add(time.Second))
	mock.ExpectQuery("SELECT id, student_id, student_name, roll_number, code, section, submitted_at").
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(2)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(countRows)

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{Code: "K3X9PQ"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
