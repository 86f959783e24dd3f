package service

import (
	"context"
	"fmt"

	"github.com/dunskii/lessondesk/internal/calmath"
	"github.com/dunskii/lessondesk/internal/model"
)

// SlotService вычисляет свободные индивидуальные слоты гибридного урока.
// Чистое чтение без блокировок: гонки разрешаются при создании брони.
type SlotService struct {
	terms    TermStore
	lessons  LessonStore
	bookings BookingStore
}

func NewSlotService(terms TermStore, lessons LessonStore, bookings BookingStore) *SlotService {
	return &SlotService{
		terms:    terms,
		lessons:  lessons,
		bookings: bookings,
	}
}

// AvailableSlots возвращает сетку слотов урока на неделю бронирования.
// Окно урока режется на последовательные окна длиной в slot_duration_min,
// неполный хвост отбрасывается. Слот занят, если полуоткрыто пересекается
// с любым активным бронированием этой недели.
func (s *SlotService) AvailableSlots(ctx context.Context, tenantID, lessonID int64, week int) ([]model.Slot, error) {
	lesson, err := s.lessons.GetByID(ctx, tenantID, lessonID)
	if err != nil {
		return nil, fmt.Errorf("get lesson: %w", err)
	}
	if lesson == nil {
		return nil, fmt.Errorf("lesson %d: %w", lessonID, ErrNotFound)
	}

	if lesson.LessonType != model.LessonTypeHybrid || lesson.Pattern == nil {
		return nil, fmt.Errorf("lesson %d is not hybrid: %w", lessonID, ErrInvalidState)
	}
	if !lesson.Pattern.BookingsOpen {
		return nil, fmt.Errorf("bookings are closed for lesson %d: %w", lessonID, ErrInvalidState)
	}
	if !lesson.Pattern.HasIndividualWeek(week) {
		return nil, fmt.Errorf("week %d is not an individual week: %w", week, ErrInvalidState)
	}

	term, err := s.terms.GetByID(ctx, tenantID, lesson.TermID)
	if err != nil {
		return nil, fmt.Errorf("get term: %w", err)
	}
	if term == nil {
		return nil, fmt.Errorf("term %d: %w", lesson.TermID, ErrNotFound)
	}

	date := calmath.DateForWeek(term.StartDate, week, lesson.Weekday)

	bookings, err := s.bookings.ListActiveForLessonWeek(ctx, tenantID, lessonID, week)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	duration := model.MinuteOfDay(lesson.Pattern.SlotDurationMin)
	slots := make([]model.Slot, 0)

	for start := lesson.StartTime; start+duration <= lesson.EndTime; start += duration {
		end := start + duration

		available := true
		for _, b := range bookings {
			// Полуоткрытое пересечение [start, end) и [b.StartTime, b.EndTime)
			if start < b.EndTime && b.StartTime < end {
				available = false
				break
			}
		}

		slots = append(slots, model.Slot{
			Date:        date,
			StartTime:   start,
			EndTime:     end,
			IsAvailable: available,
		})
	}

	return slots, nil
}
