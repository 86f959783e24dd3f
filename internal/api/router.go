package api

import (
	"github.com/gin-gonic/gin"
)

// NewRouter собирает маршруты API. Аутентификация и валидация запросов
// живут во внешнем слое платформы; здесь только маршрутизация.
func NewRouter(h *Handler, env string) *gin.Engine {
	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1/tenants/:tenantID")
	{
		v1.GET("/terms", h.GetTerms)

		v1.GET("/lessons/:lessonID", h.GetLesson)
		v1.GET("/lessons/:lessonID/weeks/:week/slots", h.GetAvailableSlots)
		v1.PUT("/lessons/:lessonID/bookings-open", h.ToggleBookingsOpen)
		v1.PUT("/lessons/:lessonID/pattern", h.UpdatePattern)

		v1.POST("/bookings", h.CreateBooking)
		v1.GET("/bookings", h.ListBookings)
		v1.PUT("/bookings/:bookingID", h.RescheduleBooking)
		v1.POST("/bookings/:bookingID/cancel", h.CancelBooking)

		v1.GET("/calendar/events", h.GetCalendarEvents)
	}

	return r
}
