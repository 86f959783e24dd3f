package service

import (
	"context"
	"time"

	"github.com/dunskii/lessondesk/internal/model"
	"github.com/dunskii/lessondesk/internal/repository"
)

// Интерфейсы хранилища, которые нужны сервисам. Реализуются
// pgx-репозиториями из internal/repository; в тестах подменяются фейками.

type TermStore interface {
	GetByID(ctx context.Context, tenantID, id int64) (*model.Term, error)
	List(ctx context.Context, tenantID int64) ([]*model.Term, error)
}

type LessonStore interface {
	GetByID(ctx context.Context, tenantID, id int64) (*model.RecurringLesson, error)
	ListActive(ctx context.Context, tenantID int64, termID, teacherID *int64) ([]*model.RecurringLesson, error)
	SetBookingsOpen(ctx context.Context, tenantID, lessonID int64, open bool) error
	UpdatePattern(ctx context.Context, tenantID, lessonID int64, pattern *model.HybridPattern) error
}

// Roster читающая поверхность внешнего ростера: зачисления и семьи
type Roster interface {
	IsEnrolled(ctx context.Context, tenantID, lessonID, studentID int64) (bool, error)
	FamilyOf(ctx context.Context, tenantID, parentID int64) ([]int64, error)
	CountActiveByLesson(ctx context.Context, tenantID int64, lessonIDs []int64) (map[int64]int, error)
}

type BookingStore interface {
	GetByID(ctx context.Context, tenantID, id int64) (*model.Booking, error)
	ListActiveForLessonWeek(ctx context.Context, tenantID, lessonID int64, week int) ([]*model.Booking, error)
	ListByParent(ctx context.Context, tenantID, parentID int64, f repository.BookingFilter) ([]*model.Booking, error)
	ListByLesson(ctx context.Context, tenantID, lessonID int64, f repository.BookingFilter) ([]*model.Booking, error)
	ListActiveInRange(ctx context.Context, tenantID int64, from, to time.Time, teacherID *int64) ([]*model.Booking, error)

	// Транзакционные операции; граница транзакции внутри реализации —
	// единственный механизм защиты от гонок за слот
	CreateExclusive(ctx context.Context, booking *model.Booking) error
	RescheduleExclusive(ctx context.Context, tenantID, id, lessonID int64, week int, date time.Time, start, end model.MinuteOfDay) error
	Cancel(ctx context.Context, tenantID, id int64, reason string) error
}
