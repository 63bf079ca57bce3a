package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edubridge-api/internal/models"
)

// AttendanceRepository stores accepted attendance submissions.
// The log is append-only; records are never updated or deleted.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository creates the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Append inserts a new attendance record.
func (r *AttendanceRepository) Append(ctx context.Context, record *models.AttendanceRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	const query = `INSERT INTO attendance_records (id, student_id, student_name, roll_number, code, section, submitted_at)
VALUES (:id, :student_id, :student_name, :roll_number, :code, :section, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("append attendance record: %w", err)
	}
	return nil
}

// Exists reports whether the student already has a record for the code value.
func (r *AttendanceRepository) Exists(ctx context.Context, studentID, code string) (bool, error) {
	const query = `SELECT COUNT(*) FROM attendance_records WHERE student_id = $1 AND code = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, code); err != nil {
		return false, fmt.Errorf("check attendance record: %w", err)
	}
	return count > 0, nil
}

// List returns records matching the filter, oldest first, with a total count.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	base := `FROM attendance_records`
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.Code != "" {
		where = append(where, fmt.Sprintf("code = $%d", len(args)+1))
		args = append(args, filter.Code)
	}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Section != "" {
		where = append(where, fmt.Sprintf("section = $%d", len(args)+1))
		args = append(args, filter.Section)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_id, student_name, roll_number, code, section, submitted_at
%s WHERE %s ORDER BY submitted_at ASC LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance records: %w", err)
	}
	return records, total, nil
}
