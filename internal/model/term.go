package model

import "time"

// Term учебный период арендатора, точка отсчёта для нумерации недель.
// Неделя 1 начинается в StartDate.
type Term struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"` // дата, полночь UTC
	EndDate   time.Time `json:"end_date"`   // включительно
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
