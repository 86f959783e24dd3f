package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dunskii/lessondesk/internal/calmath"
	"github.com/dunskii/lessondesk/internal/model"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 200
)

// EventFilter параметры календарной ленты
type EventFilter struct {
	TermID    *int64
	TeacherID *int64
	From      time.Time
	To        time.Time
	Page      int
	Limit     int
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

type EventPage struct {
	Events     []model.CalendarEvent `json:"events"`
	Pagination Pagination            `json:"pagination"`
}

// CalendarService собирает календарную ленту: повторяющиеся занятия
// разворачиваются по неделям периода, к ним подмешиваются конкретные
// индивидуальные бронирования. Чистая функция от (уроки, брони,
// диапазон), пересчитывается на каждый запрос и нигде не хранится;
// устаревание относительно параллельных записей безвредно.
type CalendarService struct {
	terms    TermStore
	lessons  LessonStore
	roster   Roster
	bookings BookingStore
}

func NewCalendarService(terms TermStore, lessons LessonStore, roster Roster, bookings BookingStore) *CalendarService {
	return &CalendarService{
		terms:    terms,
		lessons:  lessons,
		roster:   roster,
		bookings: bookings,
	}
}

// Events возвращает отсортированную по началу страницу событий
func (s *CalendarService) Events(ctx context.Context, tenantID int64, f EventFilter) (*EventPage, error) {
	if f.From.IsZero() || f.To.IsZero() || f.To.Before(f.From) {
		return nil, fmt.Errorf("invalid date range: %w", ErrInvalidState)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = defaultEventLimit
	}
	if f.Limit > maxEventLimit {
		f.Limit = maxEventLimit
	}

	terms, err := s.terms.List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	termsByID := make(map[int64]*model.Term, len(terms))
	for _, t := range terms {
		termsByID[t.ID] = t
	}

	lessons, err := s.lessons.ListActive(ctx, tenantID, f.TermID, f.TeacherID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}

	lessonIDs := make([]int64, 0, len(lessons))
	for _, l := range lessons {
		lessonIDs = append(lessonIDs, l.ID)
	}
	enrolled, err := s.roster.CountActiveByLesson(ctx, tenantID, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}

	var events []model.CalendarEvent
	for _, lesson := range lessons {
		term := termsByID[lesson.TermID]
		if term == nil {
			continue
		}
		events = append(events, s.lessonOccurrences(lesson, term, f, enrolled[lesson.ID])...)
	}

	bookings, err := s.bookings.ListActiveInRange(ctx, tenantID, calmath.Midnight(f.From), calmath.Midnight(f.To), f.TeacherID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	for _, b := range bookings {
		events = append(events, bookingEvent(b))
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})

	return paginate(events, f.Page, f.Limit), nil
}

// lessonOccurrences разворачивает занятие по неделям: идём с недели 1,
// пока дата занятия не выйдет за период или за запрошенный диапазон
func (s *CalendarService) lessonOccurrences(lesson *model.RecurringLesson, term *model.Term, f EventFilter, enrolledCount int) []model.CalendarEvent {
	var events []model.CalendarEvent

	for week := 1; ; week++ {
		date := calmath.DateForWeek(term.StartDate, week, lesson.Weekday)
		if date.After(term.EndDate) || date.After(f.To) {
			break
		}
		if date.Before(calmath.Midnight(f.From)) {
			continue
		}

		event := model.CalendarEvent{
			ID:         fmt.Sprintf("lesson-%d-w%d", lesson.ID, week),
			Start:      lesson.StartTime.On(date),
			End:        lesson.EndTime.On(date),
			LessonID:   lesson.ID,
			WeekNumber: week,
		}

		switch {
		case lesson.LessonType != model.LessonTypeHybrid || lesson.Pattern == nil:
			event.Kind = model.EventKindLesson
			event.Title = lesson.Name

		case lesson.Pattern.HasGroupWeek(week):
			event.Kind = model.EventKindGroup
			event.Title = lesson.Name + " (group)"
			count := enrolledCount
			event.EnrolledCount = &count

		case lesson.Pattern.HasIndividualWeek(week):
			event.Kind = model.EventKindPlaceholder
			event.Title = lesson.Name + " (individual slots)"
			open := lesson.Pattern.BookingsOpen
			event.BookingsOpen = &open

		default:
			// Неделя вне обоих множеств паттерна: занятия нет
			continue
		}

		events = append(events, event)
	}

	return events
}

func bookingEvent(b *model.Booking) model.CalendarEvent {
	studentID := b.StudentID
	title := b.LessonName
	if title == "" {
		title = "Individual lesson"
	}
	return model.CalendarEvent{
		ID:         fmt.Sprintf("booking-%d", b.ID),
		Title:      fmt.Sprintf("%s: student %d", title, b.StudentID),
		Start:      b.StartTime.On(b.ScheduledDate),
		End:        b.EndTime.On(b.ScheduledDate),
		Kind:       model.EventKindBooking,
		LessonID:   b.LessonID,
		StudentID:  &studentID,
		WeekNumber: b.WeekNumber,
	}
}

func paginate(events []model.CalendarEvent, page, limit int) *EventPage {
	if events == nil {
		events = []model.CalendarEvent{}
	}
	total := len(events)
	totalPages := (total + limit - 1) / limit

	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &EventPage{
		Events: events[start:end],
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasMore:    page < totalPages,
		},
	}
}
