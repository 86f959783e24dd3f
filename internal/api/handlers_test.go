package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dunskii/lessondesk/internal/model"
	"github.com/dunskii/lessondesk/internal/notify"
	"github.com/dunskii/lessondesk/internal/repository"
	"github.com/dunskii/lessondesk/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Сцена: период с понедельника 7 января 2030 (заведомо в будущем,
// правило 24 часов выполняется без подмены часов), гибридный урок
// по понедельникам 09:00–09:45, индивидуальные недели 2 и 4.
var (
	apiTermStart = time.Date(2030, time.January, 7, 0, 0, 0, 0, time.UTC)
	apiTermEnd   = time.Date(2030, time.March, 31, 0, 0, 0, 0, time.UTC)
)

type stubTerms struct{ term *model.Term }

func (s *stubTerms) GetByID(_ context.Context, tenantID, id int64) (*model.Term, error) {
	if s.term.TenantID == tenantID && s.term.ID == id {
		return s.term, nil
	}
	return nil, nil
}

func (s *stubTerms) List(_ context.Context, tenantID int64) ([]*model.Term, error) {
	if s.term.TenantID == tenantID {
		return []*model.Term{s.term}, nil
	}
	return nil, nil
}

type stubLessons struct{ lesson *model.RecurringLesson }

func (s *stubLessons) GetByID(_ context.Context, tenantID, id int64) (*model.RecurringLesson, error) {
	if s.lesson.TenantID == tenantID && s.lesson.ID == id {
		return s.lesson, nil
	}
	return nil, nil
}

func (s *stubLessons) ListActive(_ context.Context, tenantID int64, _, _ *int64) ([]*model.RecurringLesson, error) {
	if s.lesson.TenantID == tenantID {
		return []*model.RecurringLesson{s.lesson}, nil
	}
	return nil, nil
}

func (s *stubLessons) SetBookingsOpen(_ context.Context, tenantID, lessonID int64, open bool) error {
	if s.lesson.TenantID != tenantID || s.lesson.ID != lessonID || s.lesson.Pattern == nil {
		return repository.ErrNotFound
	}
	s.lesson.Pattern.BookingsOpen = open
	return nil
}

func (s *stubLessons) UpdatePattern(_ context.Context, tenantID, lessonID int64, pattern *model.HybridPattern) error {
	if s.lesson.TenantID != tenantID || s.lesson.ID != lessonID || s.lesson.Pattern == nil {
		return repository.ErrNotFound
	}
	s.lesson.Pattern.GroupWeeks = pattern.GroupWeeks
	s.lesson.Pattern.IndividualWeeks = pattern.IndividualWeeks
	s.lesson.Pattern.SlotDurationMin = pattern.SlotDurationMin
	return nil
}

type stubRoster struct{}

func (stubRoster) IsEnrolled(_ context.Context, _, _, _ int64) (bool, error) { return true, nil }

func (stubRoster) FamilyOf(_ context.Context, _, parentID int64) ([]int64, error) {
	// Родитель N владеет участником N*10
	return []int64{parentID * 10}, nil
}

func (stubRoster) CountActiveByLesson(_ context.Context, _ int64, lessonIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(lessonIDs))
	for _, id := range lessonIDs {
		counts[id] = 1
	}
	return counts, nil
}

type stubBookings struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*model.Booking
}

func newStubBookings() *stubBookings {
	return &stubBookings{nextID: 1, rows: make(map[int64]*model.Booking)}
}

func (s *stubBookings) GetByID(_ context.Context, tenantID, id int64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.rows[id]
	if b == nil || b.TenantID != tenantID {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (s *stubBookings) ListActiveForLessonWeek(_ context.Context, tenantID, lessonID int64, week int) ([]*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Booking
	for _, b := range s.rows {
		if b.TenantID == tenantID && b.LessonID == lessonID && b.WeekNumber == week && b.Status.IsActive() {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *stubBookings) ListByParent(_ context.Context, tenantID, parentID int64, _ repository.BookingFilter) ([]*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Booking
	for _, b := range s.rows {
		if b.TenantID == tenantID && b.ParentID == parentID {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *stubBookings) ListByLesson(_ context.Context, tenantID, lessonID int64, _ repository.BookingFilter) ([]*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Booking
	for _, b := range s.rows {
		if b.TenantID == tenantID && b.LessonID == lessonID {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *stubBookings) ListActiveInRange(_ context.Context, tenantID int64, from, to time.Time, _ *int64) ([]*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Booking
	for _, b := range s.rows {
		if b.TenantID == tenantID && b.Status.IsActive() && !b.ScheduledDate.Before(from) && !b.ScheduledDate.After(to) {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *stubBookings) CreateExclusive(_ context.Context, booking *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.rows {
		if b.TenantID != booking.TenantID || b.LessonID != booking.LessonID || !b.Status.IsActive() {
			continue
		}
		if b.StudentID == booking.StudentID && b.WeekNumber == booking.WeekNumber {
			return repository.ErrStudentAlreadyBooked
		}
		if b.WeekNumber == booking.WeekNumber && b.StartTime == booking.StartTime {
			return repository.ErrSlotTaken
		}
	}
	booking.ID = s.nextID
	s.nextID++
	booking.Status = model.BookingStatusConfirmed
	copied := *booking
	s.rows[booking.ID] = &copied
	return nil
}

func (s *stubBookings) RescheduleExclusive(_ context.Context, tenantID, id, lessonID int64, week int, date time.Time, start, end model.MinuteOfDay) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.rows[id]
	if b == nil || b.TenantID != tenantID {
		return repository.ErrNotFound
	}
	for _, other := range s.rows {
		if other.ID != id && other.TenantID == tenantID && other.LessonID == lessonID &&
			other.WeekNumber == week && other.StartTime == start && other.Status.IsActive() {
			return repository.ErrSlotTaken
		}
	}
	b.ScheduledDate, b.StartTime, b.EndTime = date, start, end
	return nil
}

func (s *stubBookings) Cancel(_ context.Context, tenantID, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.rows[id]
	if b == nil || b.TenantID != tenantID {
		return repository.ErrNotFound
	}
	now := time.Now().UTC()
	b.Status = model.BookingStatusCancelled
	b.CancelReason = reason
	b.CancelledAt = &now
	return nil
}

type nopDispatcher struct{}

func (nopDispatcher) Notify(_ notify.Kind, _ int64, _ map[string]any) {}

func newTestRouter(t *testing.T) (*gin.Engine, *stubBookings) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	terms := &stubTerms{term: &model.Term{
		ID:        5,
		TenantID:  1,
		Name:      "Spring 2030",
		StartDate: apiTermStart,
		EndDate:   apiTermEnd,
	}}
	lessons := &stubLessons{lesson: &model.RecurringLesson{
		ID:         10,
		TenantID:   1,
		TermID:     5,
		Name:       "Piano",
		Weekday:    time.Monday,
		StartTime:  model.MinuteOfDay(540),
		EndTime:    model.MinuteOfDay(585),
		TeacherID:  7,
		LessonType: model.LessonTypeHybrid,
		IsActive:   true,
		Pattern: &model.HybridPattern{
			LessonID:        10,
			GroupWeeks:      []int{1, 3},
			IndividualWeeks: []int{2, 4},
			SlotDurationMin: 15,
			BookingsOpen:    true,
		},
	}}
	bookings := newStubBookings()

	logger := zap.NewNop()
	slotSvc := service.NewSlotService(terms, lessons, bookings)
	bookingSvc := service.NewBookingService(terms, lessons, stubRoster{}, bookings, nopDispatcher{}, logger)
	calendarSvc := service.NewCalendarService(terms, lessons, stubRoster{}, bookings)

	h := NewHandler(slotSvc, bookingSvc, calendarSvc, terms, lessons, logger)
	return NewRouter(h, "test"), bookings
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetLessonNotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/tenants/1/lessons/999", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Чужой арендатор неотличим от отсутствующего урока
	w = doJSON(t, r, http.MethodGet, "/api/v1/tenants/2/lessons/10", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetAvailableSlots(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/tenants/1/lessons/10/weeks/2/slots", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Slots []model.Slot `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Slots, 3)
	for _, s := range resp.Slots {
		assert.True(t, s.IsAvailable)
	}
}

func TestGetAvailableSlotsBadParams(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/tenants/1/lessons/10/weeks/zero/slots", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/tenants/abc/lessons/10/weeks/2/slots", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Групповая неделя гибрида: слотов нет в принципе
	w = doJSON(t, r, http.MethodGet, "/api/v1/tenants/1/lessons/10/weeks/1/slots", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreateBookingFlow(t *testing.T) {
	r, bookings := newTestRouter(t)

	body := gin.H{
		"parent_id":  100,
		"lesson_id":  10,
		"student_id": 1000,
		"week":       2,
		"date":       "2030-01-14",
		"start_time": "09:00",
		"end_time":   "09:15",
	}
	w := doJSON(t, r, http.MethodPost, "/api/v1/tenants/1/bookings", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created model.Booking
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, model.BookingStatusConfirmed, created.Status)
	assert.Equal(t, 2, created.WeekNumber)

	// Тот же слот другим участником: конфликт
	body["parent_id"], body["student_id"] = 200, 2000
	w = doJSON(t, r, http.MethodPost, "/api/v1/tenants/1/bookings", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	// Отмена освобождает слот
	w = doJSON(t, r, http.MethodPost,
		fmt.Sprintf("/api/v1/tenants/1/bookings/%d/cancel", created.ID),
		gin.H{"parent_id": 100, "reason": "sick"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored := bookings.rows[created.ID]
	require.NotNil(t, stored)
	assert.Equal(t, model.BookingStatusCancelled, stored.Status)

	w = doJSON(t, r, http.MethodPost, "/api/v1/tenants/1/bookings", body)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestCreateBookingBadRequest(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/tenants/1/bookings", gin.H{"parent_id": 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/tenants/1/bookings", gin.H{
		"parent_id":  100,
		"lesson_id":  10,
		"student_id": 1000,
		"week":       2,
		"date":       "14.01.2030",
		"start_time": "09:00",
		"end_time":   "09:15",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListBookingsRequiresKey(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/tenants/1/bookings", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/v1/tenants/1/bookings?parent_id=100", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetCalendarEventsInvalidRange(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/v1/tenants/1/calendar/events?from=2030-02-01&to=2030-01-01", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

// Ответ правки паттерна отражает сохранённое состояние: открытый приём
// бронирований не сбрасывается и возвращается как есть
func TestUpdatePatternKeepsBookingsOpen(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPut, "/api/v1/tenants/1/lessons/10/pattern", gin.H{
		"group_weeks":       []int{1, 2},
		"individual_weeks":  []int{3, 4},
		"slot_duration_min": 20,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp model.HybridPattern
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []int{3, 4}, resp.IndividualWeeks)
	assert.Equal(t, 20, resp.SlotDurationMin)
	assert.True(t, resp.BookingsOpen)
}

func TestToggleBookingsOpen(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPut, "/api/v1/tenants/1/lessons/10/bookings-open", gin.H{"open": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Закрытые записи: список слотов недоступен
	w = doJSON(t, r, http.MethodGet, "/api/v1/tenants/1/lessons/10/weeks/2/slots", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
