package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/queueme/scheduling-core/internal/availability"
	"github.com/queueme/scheduling-core/internal/buffer"
	"github.com/queueme/scheduling-core/internal/middleware"
	"github.com/queueme/scheduling-core/internal/orchestrator"
	"github.com/queueme/scheduling-core/pkg/logger"
)

// NewRouter builds the gin engine with every scheduling-core route mounted.
func NewRouter(o *orchestrator.Orchestrator, avail *availability.Engine, buffers *buffer.Manager, db *gorm.DB, redisClient *redis.Client, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.DefaultRequestLogging(log))
	router.Use(middleware.ErrorLogging(log))
	router.Use(middleware.DefaultCORS())

	health := NewHealthHandler(db, redisClient)
	router.GET("/health", health.Health)
	router.GET("/health/ready", health.Ready)
	router.GET("/health/live", health.Live)

	booking := NewBookingHandler(o, log)
	availH := NewAvailabilityHandler(avail, log)
	bufferH := NewBufferHandler(buffers, log)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/bookings", booking.CreateBooking)
		v1.POST("/bookings/multi", booking.CreateMultiBooking)
		v1.DELETE("/bookings/:id", booking.CancelBooking)
		v1.POST("/bookings/:id/reschedule", booking.RescheduleBooking)
		v1.POST("/bookings/:id/adjust-buffer", bufferH.AdjustForBuffer)

		v1.GET("/services/:serviceId/slots", availH.GetSlots)
		v1.GET("/services/:serviceId/available-days", availH.GetAvailableDays)

		v1.GET("/specialists/:specialistId/buffer-conflicts", bufferH.CheckConflicts)
	}

	return router
}
