package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dunskii/lessondesk/internal/model"
	"github.com/dunskii/lessondesk/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Имена частичных уникальных индексов по активным бронированиям,
// вторая линия защиты эксклюзивности на случай слабой изоляции
const (
	slotUniqueIndex        = "bookings_slot_active_uq"
	studentWeekUniqueIndex = "bookings_student_week_active_uq"
)

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

// BookingFilter необязательные фильтры списков бронирований
type BookingFilter struct {
	Week   *int
	Status *model.BookingStatus
}

const bookingColumns = `
	b.id, b.tenant_id, b.lesson_id, b.student_id, b.parent_id, b.week_number,
	b.scheduled_date, b.start_time, b.end_time, b.status, b.cancel_reason,
	b.cancelled_at, b.created_at, b.updated_at
`

func scanBooking(row pgx.Row, extra ...any) (*model.Booking, error) {
	var booking model.Booking
	dest := []any{
		&booking.ID,
		&booking.TenantID,
		&booking.LessonID,
		&booking.StudentID,
		&booking.ParentID,
		&booking.WeekNumber,
		&booking.ScheduledDate,
		&booking.StartTime,
		&booking.EndTime,
		&booking.Status,
		&booking.CancelReason,
		&booking.CancelledAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	return &booking, nil
}

// GetByID получает бронирование по ID в рамках арендатора
func (r *BookingRepository) GetByID(ctx context.Context, tenantID, id int64) (*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.tenant_id = $1 AND b.id = $2
	`

	booking, err := scanBooking(r.pool.QueryRow(ctx, query, tenantID, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	return booking, nil
}

// ListActiveForLessonWeek получает активные бронирования урока на неделю
func (r *BookingRepository) ListActiveForLessonWeek(ctx context.Context, tenantID, lessonID int64, week int) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.tenant_id = $1 AND b.lesson_id = $2 AND b.week_number = $3
		  AND b.status <> 'CANCELLED'
		ORDER BY b.start_time
	`

	return r.list(ctx, query, tenantID, lessonID, week)
}

// ListByParent получает бронирования, принадлежащие родителю
func (r *BookingRepository) ListByParent(ctx context.Context, tenantID, parentID int64, f BookingFilter) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.tenant_id = $1 AND b.parent_id = $2
		  AND ($3::int IS NULL OR b.week_number = $3)
		  AND ($4::text IS NULL OR b.status = $4)
		ORDER BY b.scheduled_date, b.start_time
	`

	return r.list(ctx, query, tenantID, parentID, f.Week, f.Status)
}

// ListByLesson получает бронирования урока (админская выборка)
func (r *BookingRepository) ListByLesson(ctx context.Context, tenantID, lessonID int64, f BookingFilter) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.tenant_id = $1 AND b.lesson_id = $2
		  AND ($3::int IS NULL OR b.week_number = $3)
		  AND ($4::text IS NULL OR b.status = $4)
		ORDER BY b.scheduled_date, b.start_time
	`

	return r.list(ctx, query, tenantID, lessonID, f.Week, f.Status)
}

// ListActiveInRange получает активные бронирования в диапазоне дат
// для календарной ленты, с названием урока и фильтром по преподавателю
func (r *BookingRepository) ListActiveInRange(ctx context.Context, tenantID int64, from, to time.Time, teacherID *int64) ([]*model.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `, l.name
		FROM bookings b
		JOIN recurring_lessons l ON l.id = b.lesson_id
		WHERE b.tenant_id = $1
		  AND b.status <> 'CANCELLED'
		  AND b.scheduled_date >= $2 AND b.scheduled_date <= $3
		  AND ($4::bigint IS NULL OR l.teacher_id = $4)
		ORDER BY b.scheduled_date, b.start_time
	`

	rows, err := r.pool.Query(ctx, query, tenantID, from, to, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list bookings in range: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		var booking *model.Booking
		booking, err = scanBookingWithLesson(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return bookings, nil
}

func scanBookingWithLesson(row pgx.Row) (*model.Booking, error) {
	var name string
	booking, err := scanBooking(row, &name)
	if err != nil {
		return nil, err
	}
	booking.LessonName = name
	return booking, nil
}

// CreateExclusive создаёт CONFIRMED бронирование внутри одной транзакции:
// перепроверка обоих инвариантов эксклюзивности и вставка. При гонке двух
// запросов на один слот ровно один получает успех, второй — ErrSlotTaken.
func (r *BookingRepository) CreateExclusive(ctx context.Context, booking *model.Booking) error {
	return base.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		// У ученика не больше одного активного бронирования на неделю
		taken, err := hasActiveForStudentWeek(ctx, tx, booking.TenantID, booking.LessonID, booking.StudentID, booking.WeekNumber)
		if err != nil {
			return err
		}
		if taken {
			return ErrStudentAlreadyBooked
		}

		// Слот свободен
		taken, err = hasActiveForSlot(ctx, tx, booking.TenantID, booking.LessonID, booking.WeekNumber, booking.ScheduledDate, booking.StartTime, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotTaken
		}

		query := `
			INSERT INTO bookings (tenant_id, lesson_id, student_id, parent_id, week_number,
			                      scheduled_date, start_time, end_time, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at
		`

		err = tx.QueryRow(
			ctx, query,
			booking.TenantID,
			booking.LessonID,
			booking.StudentID,
			booking.ParentID,
			booking.WeekNumber,
			booking.ScheduledDate,
			booking.StartTime,
			booking.EndTime,
			booking.Status,
		).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)

		if err != nil {
			return mapUniqueViolation(fmt.Errorf("create booking: %w", err))
		}

		return nil
	})
}

// RescheduleExclusive переносит бронирование на новые дату и время внутри
// одной транзакции, перепроверяя что новый слот не занят другими
func (r *BookingRepository) RescheduleExclusive(ctx context.Context, tenantID, id, lessonID int64, week int, date time.Time, start, end model.MinuteOfDay) error {
	return base.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		taken, err := hasActiveForSlot(ctx, tx, tenantID, lessonID, week, date, start, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrSlotTaken
		}

		query := `
			UPDATE bookings
			SET scheduled_date = $3, start_time = $4, end_time = $5, updated_at = now()
			WHERE tenant_id = $1 AND id = $2
		`

		tag, err := tx.Exec(ctx, query, tenantID, id, date, start, end)
		if err != nil {
			return mapUniqueViolation(fmt.Errorf("reschedule booking: %w", err))
		}

		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}

		return nil
	})
}

// Cancel переводит бронирование в CANCELLED с причиной и отметкой времени
func (r *BookingRepository) Cancel(ctx context.Context, tenantID, id int64, reason string) error {
	query := `
		UPDATE bookings
		SET status = 'CANCELLED', cancel_reason = $3, cancelled_at = now(), updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`

	tag, err := r.pool.Exec(ctx, query, tenantID, id, reason)
	if err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

func hasActiveForStudentWeek(ctx context.Context, q base.Querier, tenantID, lessonID, studentID int64, week int) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE tenant_id = $1 AND lesson_id = $2 AND student_id = $3 AND week_number = $4
			  AND status <> 'CANCELLED'
		)
	`

	var exists bool
	if err := q.QueryRow(ctx, query, tenantID, lessonID, studentID, week).Scan(&exists); err != nil {
		return false, fmt.Errorf("check student week booking: %w", err)
	}
	return exists, nil
}

func hasActiveForSlot(ctx context.Context, q base.Querier, tenantID, lessonID int64, week int, date time.Time, start model.MinuteOfDay, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE tenant_id = $1 AND lesson_id = $2 AND week_number = $3
			  AND scheduled_date = $4 AND start_time = $5
			  AND status <> 'CANCELLED'
			  AND id <> $6
		)
	`

	var exists bool
	if err := q.QueryRow(ctx, query, tenantID, lessonID, week, date, start, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slot booking: %w", err)
	}
	return exists, nil
}

// mapUniqueViolation транслирует нарушение частичного уникального индекса
// в доменную ошибку эксклюзивности
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}

	switch pgErr.ConstraintName {
	case slotUniqueIndex:
		return ErrSlotTaken
	case studentWeekUniqueIndex:
		return ErrStudentAlreadyBooked
	}

	return err
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}

	return bookings, nil
}
