package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dunskii/lessondesk/internal/model"
	"github.com/dunskii/lessondesk/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

// Handler HTTP-обвязка над сервисами. Тонкий слой: разобрать запрос,
// вызвать сервис, оттранслировать ошибку в статус. Идентификатор
// арендатора всегда берётся из пути и передаётся первым аргументом.
type Handler struct {
	slots    *service.SlotService
	bookings *service.BookingService
	calendar *service.CalendarService
	terms    service.TermStore
	lessons  service.LessonStore
	logger   *zap.Logger
}

func NewHandler(
	slots *service.SlotService,
	bookings *service.BookingService,
	calendar *service.CalendarService,
	terms service.TermStore,
	lessons service.LessonStore,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		slots:    slots,
		bookings: bookings,
		calendar: calendar,
		terms:    terms,
		lessons:  lessons,
		logger:   logger,
	}
}

// writeError транслирует пять ожидаемых бизнес-исходов в 4xx;
// всё остальное — 500 без деталей наружу
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidState):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoticeViolation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// GetTerms возвращает учебные периоды арендатора
func (h *Handler) GetTerms(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantID")
	if !ok {
		return
	}

	terms, err := h.terms.List(c.Request.Context(), tenantID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"terms": terms})
}

// GetLesson возвращает урок с паттерном
func (h *Handler) GetLesson(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantID")
	if !ok {
		return
	}
	lessonID, ok := pathID(c, "lessonID")
	if !ok {
		return
	}

	lesson, err := h.lessons.GetByID(c.Request.Context(), tenantID, lessonID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if lesson == nil {
		h.writeError(c, service.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, lesson)
}

// GetAvailableSlots возвращает сетку слотов урока на неделю
func (h *Handler) GetAvailableSlots(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantID")
	if !ok {
		return
	}
	lessonID, ok := pathID(c, "lessonID")
	if !ok {
		return
	}
	week, err := strconv.Atoi(c.Param("week"))
	if err != nil || week < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid week"})
		return
	}

	slots, err := h.slots.AvailableSlots(c.Request.Context(), tenantID, lessonID, week)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

type createBookingRequest struct {
	ParentID  int64             `json:"parent_id" binding:"required"`
	LessonID  int64             `json:"lesson_id" binding:"required"`
	StudentID int64             `json:"student_id" binding:"required"`
	Week      int               `json:"week" binding:"required"`
	Date      string            `json:"date" binding:"required"`
	StartTime model.MinuteOfDay `json:"start_time"`
	EndTime   model.MinuteOfDay `json:"end_time"`
}

// CreateBooking бронирует индивидуальный слот
func (h *Handler) CreateBooking(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantID")
	if !ok {
		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	booking, err := h.bookings.Create(c.Request.Context(), tenantID, req.ParentID, service.CreateBookingInput{
		LessonID:  req.LessonID,
		StudentID: req.StudentID,
		Week:      req.Week,
		Date:      date,
		Start:     req.StartTime,
		End:       req.EndTime,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, booking)
}

type rescheduleBookingRequest struct {
	ParentID  int64             `json:"parent_id" binding:"required"`
	Date      string            `json:"date" binding:"required"`
	StartTime model.MinuteOfDay `json:"start_time"`
	EndTime   model.MinuteOfDay `json:"end_time"`
}

// RescheduleBooking переносит бронирование на другой слот
func (h *Handler) RescheduleBooking(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantID")
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "bookingID")
	if !ok {
		return
	}

	var req rescheduleBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	booking, err := h.bookings.Reschedule(c.Request.Context(), tenantID, req.ParentID, bookingID, service.RescheduleInput{
		Date:  date,
		Start: req.StartTime,
		End:   req.EndTime,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, booking)
}

type cancelBookingRequest struct {
	ParentID int64  `json:"parent_id" binding:"required"`
	Reason   string `json:"reason"`
}

// CancelBooking отменяет бронирование
func (h *Handler) CancelBooking(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantID")
	if !ok {
		return
	}
	bookingID, ok := pathID(c, "bookingID")
	if !ok {
		return
	}

	var req cancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.bookings.Cancel(c.Request.Context(), tenantID, req.ParentID, bookingID, req.Reason); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

// ListBookings выборка бронирований: либо parent_id, либо lesson_id
func (h *Handler) ListBookings(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantID")
	if !ok {
		return
	}

	var q service.ListBookingsQuery
	if s := c.Query("parent_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent_id"})
			return
		}
		q.ParentID = &id
	}
	if s := c.Query("lesson_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid lesson_id"})
			return
		}
		q.LessonID = &id
	}
	if s := c.Query("week"); s != "" {
		week, err := strconv.Atoi(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid week"})
			return
		}
		q.Week = &week
	}
	if s := c.Query("status"); s != "" {
		status := model.BookingStatus(s)
		q.Status = &status
	}

	bookings, err := h.bookings.ListBookings(c.Request.Context(), tenantID, q)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

// GetCalendarEvents возвращает страницу календарной ленты
func (h *Handler) GetCalendarEvents(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantID")
	if !ok {
		return
	}

	var f service.EventFilter

	from, err := time.Parse(dateLayout, c.DefaultQuery("from", time.Now().UTC().Format(dateLayout)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from, expected YYYY-MM-DD"})
		return
	}
	to, err := time.Parse(dateLayout, c.DefaultQuery("to", time.Now().UTC().AddDate(0, 0, 28).Format(dateLayout)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to, expected YYYY-MM-DD"})
		return
	}
	f.From, f.To = from, to

	if s := c.Query("term_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid term_id"})
			return
		}
		f.TermID = &id
	}
	if s := c.Query("teacher_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid teacher_id"})
			return
		}
		f.TeacherID = &id
	}
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))

	page, err := h.calendar.Events(c.Request.Context(), tenantID, f)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

type toggleBookingsOpenRequest struct {
	Open *bool `json:"open" binding:"required"`
}

// ToggleBookingsOpen открывает/закрывает приём бронирований (админ)
func (h *Handler) ToggleBookingsOpen(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantID")
	if !ok {
		return
	}
	lessonID, ok := pathID(c, "lessonID")
	if !ok {
		return
	}

	var req toggleBookingsOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.bookings.ToggleBookingsOpen(c.Request.Context(), tenantID, lessonID, *req.Open); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bookings_open": *req.Open})
}

type updatePatternRequest struct {
	GroupWeeks      []int `json:"group_weeks"`
	IndividualWeeks []int `json:"individual_weeks"`
	SlotDurationMin int   `json:"slot_duration_min" binding:"required"`
}

// UpdatePattern админская правка паттерна гибридного урока
func (h *Handler) UpdatePattern(c *gin.Context) {
	tenantID, ok := pathID(c, "tenantID")
	if !ok {
		return
	}
	lessonID, ok := pathID(c, "lessonID")
	if !ok {
		return
	}

	var req updatePatternRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	pattern := &model.HybridPattern{
		LessonID:        lessonID,
		GroupWeeks:      req.GroupWeeks,
		IndividualWeeks: req.IndividualWeeks,
		SlotDurationMin: req.SlotDurationMin,
	}

	if err := h.bookings.UpdatePattern(c.Request.Context(), tenantID, lessonID, pattern); err != nil {
		h.writeError(c, err)
		return
	}

	// Отдаём сохранённое состояние: bookings_open правкой паттерна
	// не трогается и в запросе отсутствует
	lesson, err := h.lessons.GetByID(c.Request.Context(), tenantID, lessonID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if lesson == nil || lesson.Pattern == nil {
		h.writeError(c, service.ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, lesson.Pattern)
}
