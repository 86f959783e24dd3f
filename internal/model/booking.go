package model

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"   // Зарезервировано, ждёт подтверждения (сейчас не создаётся)
	BookingStatusConfirmed BookingStatus = "CONFIRMED" // Подтверждено
	BookingStatusCancelled BookingStatus = "CANCELLED" // Отменено
	BookingStatusCompleted BookingStatus = "COMPLETED" // Занятие прошло (ставится внешним джобом)
)

// IsActive неотменённые статусы держат слот: COMPLETED бронирование
// занимает его наравне с CONFIRMED, свободен только отменённый
func (s BookingStatus) IsActive() bool {
	return s != BookingStatusCancelled
}

// IsFinal из финальных статусов перенос и отмена невозможны
func (s BookingStatus) IsFinal() bool {
	return s == BookingStatusCancelled || s == BookingStatusCompleted
}

// Booking бронирование индивидуального слота.
// Логический ключ (LessonID, StudentID, WeekNumber): у участника не больше
// одного активного бронирования на урок в неделю.
type Booking struct {
	ID            int64         `json:"id"`
	TenantID      int64         `json:"tenant_id"`
	LessonID      int64         `json:"lesson_id"`
	StudentID     int64         `json:"student_id"`
	ParentID      int64         `json:"parent_id"` // владелец бронирования, проверяется при изменениях
	WeekNumber    int           `json:"week_number"`
	ScheduledDate time.Time     `json:"scheduled_date"` // дата, полночь UTC
	StartTime     MinuteOfDay   `json:"start_time"`
	EndTime       MinuteOfDay   `json:"end_time"`
	Status        BookingStatus `json:"status"`
	CancelReason  string        `json:"cancel_reason,omitempty"`
	CancelledAt   *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// Дополнительные поля (не из таблицы bookings)
	LessonName string `json:"lesson_name,omitempty"`
}

// StartsAt момент начала слота
func (b *Booking) StartsAt() time.Time {
	return b.StartTime.On(b.ScheduledDate)
}
