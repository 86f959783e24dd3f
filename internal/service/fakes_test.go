package service

import (
	"context"
	"sync"
	"time"

	"github.com/dunskii/lessondesk/internal/model"
	"github.com/dunskii/lessondesk/internal/notify"
	"github.com/dunskii/lessondesk/internal/repository"
)

// Фейковые хранилища: та же семантика, что у pgx-репозиториев, но в
// памяти. Транзакционные операции сериализуются мьютексом — граница
// "транзакции" совпадает с границей вызова, как и в настоящем сторе.

type fakeTermStore struct {
	terms map[int64]*model.Term
}

func (f *fakeTermStore) GetByID(_ context.Context, tenantID, id int64) (*model.Term, error) {
	t := f.terms[id]
	if t == nil || t.TenantID != tenantID {
		return nil, nil
	}
	return t, nil
}

func (f *fakeTermStore) List(_ context.Context, tenantID int64) ([]*model.Term, error) {
	var out []*model.Term
	for _, t := range f.terms {
		if t.TenantID == tenantID {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeLessonStore struct {
	lessons map[int64]*model.RecurringLesson
}

func (f *fakeLessonStore) GetByID(_ context.Context, tenantID, id int64) (*model.RecurringLesson, error) {
	l := f.lessons[id]
	if l == nil || l.TenantID != tenantID {
		return nil, nil
	}
	return l, nil
}

func (f *fakeLessonStore) ListActive(_ context.Context, tenantID int64, termID, teacherID *int64) ([]*model.RecurringLesson, error) {
	var out []*model.RecurringLesson
	for _, l := range f.lessons {
		if l.TenantID != tenantID || !l.IsActive {
			continue
		}
		if termID != nil && l.TermID != *termID {
			continue
		}
		if teacherID != nil && l.TeacherID != *teacherID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *fakeLessonStore) SetBookingsOpen(_ context.Context, tenantID, lessonID int64, open bool) error {
	l := f.lessons[lessonID]
	if l == nil || l.TenantID != tenantID || l.Pattern == nil {
		return repository.ErrNotFound
	}
	l.Pattern.BookingsOpen = open
	return nil
}

func (f *fakeLessonStore) UpdatePattern(_ context.Context, tenantID, lessonID int64, pattern *model.HybridPattern) error {
	l := f.lessons[lessonID]
	if l == nil || l.TenantID != tenantID || l.Pattern == nil {
		return repository.ErrNotFound
	}
	l.Pattern.GroupWeeks = pattern.GroupWeeks
	l.Pattern.IndividualWeeks = pattern.IndividualWeeks
	l.Pattern.SlotDurationMin = pattern.SlotDurationMin
	return nil
}

type enrollmentKey struct {
	lessonID  int64
	studentID int64
}

type fakeRoster struct {
	enrolled map[enrollmentKey]bool
	family   map[int64][]int64 // parentID → studentIDs
	counts   map[int64]int     // lessonID → активные зачисления
}

func (f *fakeRoster) IsEnrolled(_ context.Context, _, lessonID, studentID int64) (bool, error) {
	return f.enrolled[enrollmentKey{lessonID, studentID}], nil
}

func (f *fakeRoster) FamilyOf(_ context.Context, _, parentID int64) ([]int64, error) {
	return f.family[parentID], nil
}

func (f *fakeRoster) CountActiveByLesson(_ context.Context, _ int64, lessonIDs []int64) (map[int64]int, error) {
	out := make(map[int64]int)
	for _, id := range lessonIDs {
		if c, ok := f.counts[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

type fakeBookingStore struct {
	mu       sync.Mutex
	nextID   int64
	bookings []*model.Booking
	teachers map[int64]int64 // lessonID → teacherID, для фильтра ленты
	names    map[int64]string
}

func (f *fakeBookingStore) GetByID(_ context.Context, tenantID, id int64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.ID == id && b.TenantID == tenantID {
			return b, nil
		}
	}
	return nil, nil
}

func (f *fakeBookingStore) ListActiveForLessonWeek(_ context.Context, tenantID, lessonID int64, week int) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.TenantID == tenantID && b.LessonID == lessonID && b.WeekNumber == week && b.Status.IsActive() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) ListByParent(_ context.Context, tenantID, parentID int64, filter repository.BookingFilter) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.TenantID == tenantID && b.ParentID == parentID && matchFilter(b, filter) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) ListByLesson(_ context.Context, tenantID, lessonID int64, filter repository.BookingFilter) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.TenantID == tenantID && b.LessonID == lessonID && matchFilter(b, filter) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBookingStore) ListActiveInRange(_ context.Context, tenantID int64, from, to time.Time, teacherID *int64) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for _, b := range f.bookings {
		if b.TenantID != tenantID || !b.Status.IsActive() {
			continue
		}
		if b.ScheduledDate.Before(from) || b.ScheduledDate.After(to) {
			continue
		}
		if teacherID != nil && f.teachers[b.LessonID] != *teacherID {
			continue
		}
		copied := *b
		copied.LessonName = f.names[b.LessonID]
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeBookingStore) CreateExclusive(_ context.Context, booking *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, b := range f.bookings {
		if !b.Status.IsActive() || b.LessonID != booking.LessonID {
			continue
		}
		if b.StudentID == booking.StudentID && b.WeekNumber == booking.WeekNumber {
			return repository.ErrStudentAlreadyBooked
		}
		if b.WeekNumber == booking.WeekNumber && b.ScheduledDate.Equal(booking.ScheduledDate) && b.StartTime == booking.StartTime {
			return repository.ErrSlotTaken
		}
	}

	f.nextID++
	booking.ID = f.nextID
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	f.bookings = append(f.bookings, booking)
	return nil
}

func (f *fakeBookingStore) RescheduleExclusive(_ context.Context, tenantID, id, lessonID int64, week int, date time.Time, start, end model.MinuteOfDay) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, b := range f.bookings {
		if b.ID == id || !b.Status.IsActive() || b.LessonID != lessonID {
			continue
		}
		if b.WeekNumber == week && b.ScheduledDate.Equal(date) && b.StartTime == start {
			return repository.ErrSlotTaken
		}
	}

	for _, b := range f.bookings {
		if b.ID == id && b.TenantID == tenantID {
			b.ScheduledDate = date
			b.StartTime = start
			b.EndTime = end
			b.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeBookingStore) Cancel(_ context.Context, tenantID, id int64, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.ID == id && b.TenantID == tenantID {
			now := time.Now()
			b.Status = model.BookingStatusCancelled
			b.CancelReason = reason
			b.CancelledAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

func matchFilter(b *model.Booking, f repository.BookingFilter) bool {
	if f.Week != nil && b.WeekNumber != *f.Week {
		return false
	}
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	return true
}

type fakeDispatcher struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (f *fakeDispatcher) Notify(kind notify.Kind, _ int64, _ map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
}

func (f *fakeDispatcher) sent() []notify.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notify.Kind(nil), f.kinds...)
}
