package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edubridge-api/internal/models"
)

// CalendarRepository provides persistence for calendar events.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository creates the repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// List returns events visible to the viewer within the optional date range.
func (r *CalendarRepository) List(ctx context.Context, filter models.CalendarFilter) ([]models.CalendarEvent, int, error) {
	base := "FROM calendar_events"
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.StartDate != nil {
		where = append(where, fmt.Sprintf("end_date >= $%d", len(args)+1))
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		where = append(where, fmt.Sprintf("start_date <= $%d", len(args)+1))
		args = append(args, *filter.EndDate)
	}

	audiences := []string{string(models.AnnouncementAudienceAll)}
	switch filter.ViewerRole {
	case models.RoleTeacher:
		audiences = append(audiences, string(models.AnnouncementAudienceTeachers), string(models.AnnouncementAudienceStudents), string(models.AnnouncementAudienceSection))
	case models.RoleStudent:
		audiences = append(audiences, string(models.AnnouncementAudienceStudents), string(models.AnnouncementAudienceSection))
	}
	where = append(where, fmt.Sprintf("audience = ANY($%d)", len(args)+1))
	args = append(args, pq.Array(audiences))

	if filter.ViewerRole == models.RoleStudent {
		where = append(where, fmt.Sprintf("(audience <> 'SECTION' OR target_section = $%d)", len(args)+1))
		args = append(args, filter.ViewerSection)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, title, description, event_type, start_date, end_date, audience, target_section, location, created_by, created_at, updated_at
%s WHERE %s ORDER BY start_date ASC LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var events []models.CalendarEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list calendar events: %w", err)
	}
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count calendar events: %w", err)
	}
	return events, total, nil
}

// GetByID returns an event by identifier.
func (r *CalendarRepository) GetByID(ctx context.Context, id string) (*models.CalendarEvent, error) {
	const query = `SELECT id, title, description, event_type, start_date, end_date, audience, target_section, location, created_by, created_at, updated_at
FROM calendar_events WHERE id = $1`
	var event models.CalendarEvent
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, err
	}
	return &event, nil
}

// Create inserts a new event.
func (r *CalendarRepository) Create(ctx context.Context, event *models.CalendarEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	const query = `INSERT INTO calendar_events (id, title, description, event_type, start_date, end_date, audience, target_section, location, created_by, created_at, updated_at)
VALUES (:id, :title, :description, :event_type, :start_date, :end_date, :audience, :target_section, :location, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create calendar event: %w", err)
	}
	return nil
}

// Update modifies an existing event.
func (r *CalendarRepository) Update(ctx context.Context, event *models.CalendarEvent) error {
	event.UpdatedAt = time.Now().UTC()
	const query = `UPDATE calendar_events SET title = :title, description = :description, event_type = :event_type,
start_date = :start_date, end_date = :end_date, audience = :audience, target_section = :target_section,
location = :location, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("update calendar event: %w", err)
	}
	return nil
}

// Delete removes an event.
func (r *CalendarRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM calendar_events WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	return nil
}
