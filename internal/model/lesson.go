package model

import "time"

type LessonType string

const (
	LessonTypeIndividual LessonType = "INDIVIDUAL"
	LessonTypeGroup      LessonType = "GROUP"
	LessonTypeBand       LessonType = "BAND"
	LessonTypeHybrid     LessonType = "HYBRID" // чередует групповые и индивидуальные недели
)

// RecurringLesson еженедельное занятие в рамках учебного периода
type RecurringLesson struct {
	ID              int64        `json:"id"`
	TenantID        int64        `json:"tenant_id"`
	TermID          int64        `json:"term_id"`
	Name            string       `json:"name"`
	Weekday         time.Weekday `json:"weekday"` // 0 = Sunday, 6 = Saturday
	StartTime       MinuteOfDay  `json:"start_time"`
	EndTime         MinuteOfDay  `json:"end_time"`
	Room            string       `json:"room"`
	TeacherID       int64        `json:"teacher_id"`
	Instrument      string       `json:"instrument"`
	LessonType      LessonType   `json:"lesson_type"`
	MaxParticipants int          `json:"max_participants"`
	IsActive        bool         `json:"is_active"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`

	// Заполняется только для HYBRID уроков
	Pattern *HybridPattern `json:"pattern,omitempty"`
}

// HybridPattern расписание чередования для HYBRID урока (1:1 с уроком).
// GroupWeeks и IndividualWeeks — множества номеров недель, по замыслу
// не пересекаются.
type HybridPattern struct {
	LessonID        int64 `json:"lesson_id"`
	GroupWeeks      []int `json:"group_weeks"`
	IndividualWeeks []int `json:"individual_weeks"`
	SlotDurationMin int   `json:"slot_duration_min"`
	BookingsOpen    bool  `json:"bookings_open"`
}

// HasIndividualWeek проверяет входит ли неделя в индивидуальные
func (p *HybridPattern) HasIndividualWeek(week int) bool {
	for _, w := range p.IndividualWeeks {
		if w == week {
			return true
		}
	}
	return false
}

// HasGroupWeek проверяет входит ли неделя в групповые
func (p *HybridPattern) HasGroupWeek(week int) bool {
	for _, w := range p.GroupWeeks {
		if w == week {
			return true
		}
	}
	return false
}
