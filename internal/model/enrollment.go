package model

import "time"

// Enrollment запись ученика на урок. Ведётся внешним ростер-сервисом,
// здесь только читается: проверка зачисления и семейной связи родитель-ученик.
type Enrollment struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	LessonID  int64     `json:"lesson_id"`
	StudentID int64     `json:"student_id"`
	ParentID  int64     `json:"parent_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
