package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dunskii/lessondesk/internal/calmath"
	"github.com/dunskii/lessondesk/internal/model"
	"github.com/dunskii/lessondesk/internal/notify"
	"github.com/dunskii/lessondesk/internal/repository"
	"go.uber.org/zap"
)

// MinNotice минимальное время от "сейчас" до начала слота, чтобы его
// можно было бронировать, переносить или освобождать переносом.
// Граница включительная: ровно 24 часа проходят.
const MinNotice = 24 * time.Hour

// BookingService жизненный цикл индивидуальных бронирований.
// Все мутации выполняются в одной транзакции на вызов; уведомления
// ставятся в очередь после коммита и не влияют на результат.
type BookingService struct {
	terms      TermStore
	lessons    LessonStore
	roster     Roster
	bookings   BookingStore
	dispatcher notify.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

func NewBookingService(
	terms TermStore,
	lessons LessonStore,
	roster Roster,
	bookings BookingStore,
	dispatcher notify.Dispatcher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		terms:      terms,
		lessons:    lessons,
		roster:     roster,
		bookings:   bookings,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

type CreateBookingInput struct {
	LessonID  int64             `json:"lesson_id"`
	StudentID int64             `json:"student_id"`
	Week      int               `json:"week"`
	Date      time.Time         `json:"date"`
	Start     model.MinuteOfDay `json:"start_time"`
	End       model.MinuteOfDay `json:"end_time"`
}

type RescheduleInput struct {
	Date  time.Time         `json:"date"`
	Start model.MinuteOfDay `json:"start_time"`
	End   model.MinuteOfDay `json:"end_time"`
}

// Create создаёт CONFIRMED бронирование выбранного слота. Проверки идут
// строго по порядку, каждая терминальна; эксклюзивность перепроверяется
// внутри транзакции хранилища.
func (s *BookingService) Create(ctx context.Context, tenantID, parentID int64, in CreateBookingInput) (*model.Booking, error) {
	// 1. Урок существует у арендатора, активен, гибридный, приём открыт
	lesson, err := s.lessons.GetByID(ctx, tenantID, in.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		return nil, fmt.Errorf("lesson %d: %w", in.LessonID, ErrNotFound)
	}
	if !lesson.IsActive {
		return nil, fmt.Errorf("lesson %d is inactive: %w", in.LessonID, ErrInvalidState)
	}
	if lesson.LessonType != model.LessonTypeHybrid || lesson.Pattern == nil {
		return nil, fmt.Errorf("lesson %d is not hybrid: %w", in.LessonID, ErrInvalidState)
	}
	if !lesson.Pattern.BookingsOpen {
		return nil, fmt.Errorf("bookings are closed for lesson %d: %w", in.LessonID, ErrInvalidState)
	}

	// 2. Родитель отвечает за этого ученика
	if err := s.checkFamily(ctx, tenantID, parentID, in.StudentID); err != nil {
		return nil, err
	}

	// 3. Ученик зачислен на урок
	enrolled, err := s.roster.IsEnrolled(ctx, tenantID, in.LessonID, in.StudentID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return nil, fmt.Errorf("student %d is not enrolled: %w", in.StudentID, ErrInvalidState)
	}

	// 4. Неделя индивидуальная
	if !lesson.Pattern.HasIndividualWeek(in.Week) {
		return nil, fmt.Errorf("week %d is not an individual week: %w", in.Week, ErrInvalidState)
	}

	// Слот лежит на дате занятия этой недели и внутри окна урока
	if err := s.checkSlotShape(ctx, tenantID, lesson, in.Week, in.Date, in.Start, in.End); err != nil {
		return nil, err
	}

	// 5. Правило 24 часов
	if err := s.checkNotice(in.Date, in.Start); err != nil {
		return nil, err
	}

	// 6. Транзакция: перепроверка эксклюзивности и вставка
	booking := &model.Booking{
		TenantID:      tenantID,
		LessonID:      in.LessonID,
		StudentID:     in.StudentID,
		ParentID:      parentID,
		WeekNumber:    in.Week,
		ScheduledDate: calmath.Midnight(in.Date),
		StartTime:     in.Start,
		EndTime:       in.End,
		Status:        model.BookingStatusConfirmed,
	}

	if err := s.bookings.CreateExclusive(ctx, booking); err != nil {
		return nil, mapStoreError(err, "create booking")
	}

	s.logger.Info("Booking created",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("tenant_id", tenantID),
		zap.Int64("lesson_id", in.LessonID),
		zap.Int64("student_id", in.StudentID),
		zap.Int("week", in.Week),
	)

	// 7. Уведомление best-effort, после коммита
	s.dispatcher.Notify(notify.KindBookingCreated, tenantID, map[string]any{
		"booking_id": booking.ID,
		"lesson_id":  booking.LessonID,
		"student_id": booking.StudentID,
		"week":       booking.WeekNumber,
		"date":       booking.ScheduledDate.Format("2006-01-02"),
		"start_time": booking.StartTime.String(),
		"end_time":   booking.EndTime.String(),
	})

	return booking, nil
}

// Reschedule переносит бронирование на другой слот той же недели.
// Правило 24 часов действует для обеих сторон переноса: нельзя двигать
// ни то, что скоро начнётся, ни на время, которое скоро наступит.
func (s *BookingService) Reschedule(ctx context.Context, tenantID, parentID, bookingID int64, in RescheduleInput) (*model.Booking, error) {
	booking, err := s.ownedBooking(ctx, tenantID, parentID, bookingID)
	if err != nil {
		return nil, err
	}

	if booking.Status.IsFinal() {
		return nil, fmt.Errorf("booking %d is %s: %w", bookingID, booking.Status, ErrInvalidState)
	}

	lesson, err := s.lessons.GetByID(ctx, tenantID, booking.LessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		return nil, fmt.Errorf("lesson %d: %w", booking.LessonID, ErrNotFound)
	}
	if lesson.Pattern == nil || !lesson.Pattern.BookingsOpen {
		return nil, fmt.Errorf("bookings are closed for lesson %d: %w", booking.LessonID, ErrInvalidState)
	}

	if err := s.checkSlotShape(ctx, tenantID, lesson, booking.WeekNumber, in.Date, in.Start, in.End); err != nil {
		return nil, err
	}

	// Обе стороны переноса должны удовлетворять правилу 24 часов
	if err := s.checkNotice(booking.ScheduledDate, booking.StartTime); err != nil {
		return nil, err
	}
	if err := s.checkNotice(in.Date, in.Start); err != nil {
		return nil, err
	}

	oldDate, oldStart, oldEnd := booking.ScheduledDate, booking.StartTime, booking.EndTime

	err = s.bookings.RescheduleExclusive(ctx, tenantID, booking.ID, booking.LessonID, booking.WeekNumber, calmath.Midnight(in.Date), in.Start, in.End)
	if err != nil {
		return nil, mapStoreError(err, "reschedule booking")
	}

	booking.ScheduledDate = calmath.Midnight(in.Date)
	booking.StartTime = in.Start
	booking.EndTime = in.End

	s.logger.Info("Booking rescheduled",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("tenant_id", tenantID),
		zap.String("old_start", oldStart.On(oldDate).Format(time.RFC3339)),
		zap.String("new_start", booking.StartsAt().Format(time.RFC3339)),
	)

	s.dispatcher.Notify(notify.KindBookingRescheduled, tenantID, map[string]any{
		"booking_id":     booking.ID,
		"lesson_id":      booking.LessonID,
		"student_id":     booking.StudentID,
		"week":           booking.WeekNumber,
		"old_date":       oldDate.Format("2006-01-02"),
		"old_start_time": oldStart.String(),
		"old_end_time":   oldEnd.String(),
		"date":           booking.ScheduledDate.Format("2006-01-02"),
		"start_time":     booking.StartTime.String(),
		"end_time":       booking.EndTime.String(),
	})

	return booking, nil
}

// Cancel отменяет бронирование. Повторная отмена и отмена завершённого —
// ошибка состояния, не тихий успех. Уведомление не требуется.
func (s *BookingService) Cancel(ctx context.Context, tenantID, parentID, bookingID int64, reason string) error {
	booking, err := s.ownedBooking(ctx, tenantID, parentID, bookingID)
	if err != nil {
		return err
	}

	if booking.Status.IsFinal() {
		return fmt.Errorf("booking %d is %s: %w", bookingID, booking.Status, ErrInvalidState)
	}

	if err := s.bookings.Cancel(ctx, tenantID, bookingID, reason); err != nil {
		return mapStoreError(err, "cancel booking")
	}

	s.logger.Info("Booking cancelled",
		zap.Int64("booking_id", bookingID),
		zap.Int64("tenant_id", tenantID),
		zap.String("reason", reason),
	)

	return nil
}

// ToggleBookingsOpen открывает или закрывает приём бронирований у урока.
// Открытие поднимает массовое уведомление зачисленным (сам фан-аут —
// забота внешнего сервиса рассылок).
func (s *BookingService) ToggleBookingsOpen(ctx context.Context, tenantID, lessonID int64, open bool) error {
	lesson, err := s.lessons.GetByID(ctx, tenantID, lessonID)
	if err != nil {
		return fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		return fmt.Errorf("lesson %d: %w", lessonID, ErrNotFound)
	}
	if lesson.LessonType != model.LessonTypeHybrid || lesson.Pattern == nil {
		return fmt.Errorf("lesson %d is not hybrid: %w", lessonID, ErrInvalidState)
	}

	if err := s.lessons.SetBookingsOpen(ctx, tenantID, lessonID, open); err != nil {
		return mapStoreError(err, "set bookings open")
	}

	s.logger.Info("Bookings open toggled",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("lesson_id", lessonID),
		zap.Bool("open", open),
	)

	if open {
		s.dispatcher.Notify(notify.KindBookingsOpened, tenantID, map[string]any{
			"lesson_id":   lessonID,
			"lesson_name": lesson.Name,
		})
	}

	return nil
}

// UpdatePattern админская правка недель и длительности слота
func (s *BookingService) UpdatePattern(ctx context.Context, tenantID, lessonID int64, pattern *model.HybridPattern) error {
	if pattern.SlotDurationMin <= 0 {
		return fmt.Errorf("slot duration must be positive: %w", ErrInvalidState)
	}

	lesson, err := s.lessons.GetByID(ctx, tenantID, lessonID)
	if err != nil {
		return fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		return fmt.Errorf("lesson %d: %w", lessonID, ErrNotFound)
	}
	if lesson.LessonType != model.LessonTypeHybrid || lesson.Pattern == nil {
		return fmt.Errorf("lesson %d is not hybrid: %w", lessonID, ErrInvalidState)
	}

	if err := s.lessons.UpdatePattern(ctx, tenantID, lessonID, pattern); err != nil {
		return mapStoreError(err, "update pattern")
	}

	s.logger.Info("Hybrid pattern updated",
		zap.Int64("tenant_id", tenantID),
		zap.Int64("lesson_id", lessonID),
	)

	return nil
}

// ListBookingsQuery параметры выборки; ровно один из ParentID и LessonID
type ListBookingsQuery struct {
	ParentID *int64
	LessonID *int64
	Week     *int
	Status   *model.BookingStatus
}

// ListBookings выборка бронирований для родителя либо по уроку
func (s *BookingService) ListBookings(ctx context.Context, tenantID int64, q ListBookingsQuery) ([]*model.Booking, error) {
	filter := repository.BookingFilter{Week: q.Week, Status: q.Status}

	switch {
	case q.ParentID != nil && q.LessonID == nil:
		return s.bookings.ListByParent(ctx, tenantID, *q.ParentID, filter)
	case q.LessonID != nil && q.ParentID == nil:
		return s.bookings.ListByLesson(ctx, tenantID, *q.LessonID, filter)
	default:
		return nil, fmt.Errorf("exactly one of parent_id and lesson_id is required: %w", ErrInvalidState)
	}
}

// ownedBooking получает бронирование и проверяет владение: чужой
// арендатор видит "не найдено", чужой родитель — "запрещено"
func (s *BookingService) ownedBooking(ctx context.Context, tenantID, parentID, bookingID int64) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, tenantID, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	if booking.ParentID != parentID {
		return nil, fmt.Errorf("booking %d belongs to another family: %w", bookingID, ErrForbidden)
	}
	return booking, nil
}

func (s *BookingService) checkFamily(ctx context.Context, tenantID, parentID, studentID int64) error {
	family, err := s.roster.FamilyOf(ctx, tenantID, parentID)
	if err != nil {
		return fmt.Errorf("get family: %w", err)
	}
	for _, id := range family {
		if id == studentID {
			return nil
		}
	}
	return fmt.Errorf("parent %d is not responsible for student %d: %w", parentID, studentID, ErrForbidden)
}

// checkSlotShape проверяет что выбранный слот лежит на дате занятия
// этой недели и внутри окна урока
func (s *BookingService) checkSlotShape(ctx context.Context, tenantID int64, lesson *model.RecurringLesson, week int, date time.Time, start, end model.MinuteOfDay) error {
	if end <= start {
		return fmt.Errorf("slot end must be after start: %w", ErrInvalidState)
	}
	if start < lesson.StartTime || end > lesson.EndTime {
		return fmt.Errorf("slot is outside the lesson window: %w", ErrInvalidState)
	}

	term, err := s.terms.GetByID(ctx, tenantID, lesson.TermID)
	if err != nil {
		return fmt.Errorf("get term: %w", err)
	}
	if term == nil {
		return fmt.Errorf("term %d: %w", lesson.TermID, ErrNotFound)
	}

	occurrence := calmath.DateForWeek(term.StartDate, week, lesson.Weekday)
	if !calmath.Midnight(date).Equal(occurrence) {
		return fmt.Errorf("date %s is not the lesson date of week %d: %w", date.Format("2006-01-02"), week, ErrInvalidState)
	}

	return nil
}

func (s *BookingService) checkNotice(date time.Time, start model.MinuteOfDay) error {
	startsAt := start.On(date)
	if startsAt.Sub(s.now()) < MinNotice {
		return fmt.Errorf("slot at %s starts in less than %s: %w", startsAt.Format(time.RFC3339), MinNotice, ErrNoticeViolation)
	}
	return nil
}

// mapStoreError транслирует ошибки хранилища в доменные
func mapStoreError(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrSlotTaken):
		return fmt.Errorf("%s: slot is taken: %w", op, ErrConflict)
	case errors.Is(err, repository.ErrStudentAlreadyBooked):
		return fmt.Errorf("%s: student already booked this week: %w", op, ErrConflict)
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
