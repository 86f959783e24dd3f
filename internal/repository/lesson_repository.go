package repository

import (
	"context"
	"fmt"

	"github.com/dunskii/lessondesk/internal/model"
	"github.com/dunskii/lessondesk/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LessonRepository struct {
	pool *pgxpool.Pool
}

func NewLessonRepository(pool *pgxpool.Pool) *LessonRepository {
	return &LessonRepository{pool: pool}
}

const lessonColumns = `
	l.id, l.tenant_id, l.term_id, l.name, l.weekday, l.start_time, l.end_time,
	l.room, l.teacher_id, l.instrument, l.lesson_type, l.max_participants,
	l.is_active, l.created_at, l.updated_at,
	p.lesson_id, p.group_weeks, p.individual_weeks, p.slot_duration_min, p.bookings_open
`

// scanLesson читает урок вместе с паттерном (LEFT JOIN hybrid_patterns)
func scanLesson(row pgx.Row) (*model.RecurringLesson, error) {
	var (
		lesson          model.RecurringLesson
		patternLessonID *int64
		groupWeeks      []int32
		individualWeeks []int32
		slotDuration    *int
		bookingsOpen    *bool
	)

	err := row.Scan(
		&lesson.ID,
		&lesson.TenantID,
		&lesson.TermID,
		&lesson.Name,
		&lesson.Weekday,
		&lesson.StartTime,
		&lesson.EndTime,
		&lesson.Room,
		&lesson.TeacherID,
		&lesson.Instrument,
		&lesson.LessonType,
		&lesson.MaxParticipants,
		&lesson.IsActive,
		&lesson.CreatedAt,
		&lesson.UpdatedAt,
		&patternLessonID,
		&groupWeeks,
		&individualWeeks,
		&slotDuration,
		&bookingsOpen,
	)
	if err != nil {
		return nil, err
	}

	if patternLessonID != nil {
		lesson.Pattern = &model.HybridPattern{
			LessonID:        *patternLessonID,
			GroupWeeks:      toIntSlice(groupWeeks),
			IndividualWeeks: toIntSlice(individualWeeks),
			SlotDurationMin: *slotDuration,
			BookingsOpen:    *bookingsOpen,
		}
	}

	return &lesson, nil
}

func toIntSlice(src []int32) []int {
	dst := make([]int, len(src))
	for i, v := range src {
		dst[i] = int(v)
	}
	return dst
}

func toInt32Slice(src []int) []int32 {
	dst := make([]int32, len(src))
	for i, v := range src {
		dst[i] = int32(v)
	}
	return dst
}

// GetByID получает урок с паттерном по ID в рамках арендатора
func (r *LessonRepository) GetByID(ctx context.Context, tenantID, id int64) (*model.RecurringLesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM recurring_lessons l
		LEFT JOIN hybrid_patterns p ON p.lesson_id = l.id
		WHERE l.tenant_id = $1 AND l.id = $2
	`

	lesson, err := scanLesson(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get lesson by id: %w", err)
	}

	return lesson, nil
}

// ListActive получает активные уроки арендатора с необязательными
// фильтрами по периоду и преподавателю
func (r *LessonRepository) ListActive(ctx context.Context, tenantID int64, termID, teacherID *int64) ([]*model.RecurringLesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM recurring_lessons l
		LEFT JOIN hybrid_patterns p ON p.lesson_id = l.id
		WHERE l.tenant_id = $1
		  AND l.is_active
		  AND ($2::bigint IS NULL OR l.term_id = $2)
		  AND ($3::bigint IS NULL OR l.teacher_id = $3)
		ORDER BY l.id
	`

	rows, err := r.pool.Query(ctx, query, tenantID, termID, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list active lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*model.RecurringLesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lessons = append(lessons, lesson)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lessons: %w", err)
	}

	return lessons, nil
}

// SetBookingsOpen переключает флаг приёма бронирований у паттерна урока.
// Возвращает ErrNotFound если у урока арендатора нет паттерна.
func (r *LessonRepository) SetBookingsOpen(ctx context.Context, tenantID, lessonID int64, open bool) error {
	query := `
		UPDATE hybrid_patterns p
		SET bookings_open = $3
		FROM recurring_lessons l
		WHERE p.lesson_id = l.id AND l.tenant_id = $1 AND l.id = $2
	`

	tag, err := r.pool.Exec(ctx, query, tenantID, lessonID, open)
	if err != nil {
		return fmt.Errorf("set bookings open: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdatePattern обновляет недели и длительность слота у паттерна урока
func (r *LessonRepository) UpdatePattern(ctx context.Context, tenantID, lessonID int64, pattern *model.HybridPattern) error {
	query := `
		UPDATE hybrid_patterns p
		SET group_weeks = $3, individual_weeks = $4, slot_duration_min = $5
		FROM recurring_lessons l
		WHERE p.lesson_id = l.id AND l.tenant_id = $1 AND l.id = $2
	`

	tag, err := r.pool.Exec(
		ctx, query,
		tenantID,
		lessonID,
		toInt32Slice(pattern.GroupWeeks),
		toInt32Slice(pattern.IndividualWeeks),
		pattern.SlotDurationMin,
	)
	if err != nil {
		return fmt.Errorf("update pattern: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
