package model

import "time"

// Slot кандидат на индивидуальное занятие внутри недели бронирования.
// Не хранится в базе, вычисляется на каждый запрос.
type Slot struct {
	Date        time.Time   `json:"date"`
	StartTime   MinuteOfDay `json:"start_time"`
	EndTime     MinuteOfDay `json:"end_time"`
	IsAvailable bool        `json:"is_available"`
}
