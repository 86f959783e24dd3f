package model

import "time"

type EventKind string

const (
	EventKindLesson      EventKind = "lesson"     // обычное еженедельное занятие
	EventKindGroup       EventKind = "group"      // групповая неделя гибридного урока
	EventKindPlaceholder EventKind = "individual" // неделя индивидуальных слотов (без конкретных броней)
	EventKindBooking     EventKind = "booking"    // конкретное индивидуальное бронирование
)

// CalendarEvent элемент календарной ленты. Собирается на лету из
// расписаний и бронирований, нигде не сохраняется.
type CalendarEvent struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Kind       EventKind `json:"kind"`
	LessonID   int64     `json:"lesson_id"`
	StudentID  *int64    `json:"student_id,omitempty"`
	WeekNumber int       `json:"week_number"`

	// Аннотации по виду события
	EnrolledCount *int  `json:"enrolled_count,omitempty"` // для group
	BookingsOpen  *bool `json:"bookings_open,omitempty"`  // для individual
}
