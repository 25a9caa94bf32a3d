// Package httpapi is the gin-based reference transport for the scheduling
// core: thin handlers that bind JSON/query input, call the orchestrator and
// its component engines, and map typed errors to HTTP status codes. No
// business logic lives here — it belongs to internal/orchestrator,
// internal/availability, internal/buffer and internal/conflict.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/queueme/scheduling-core/internal/availability"
	"github.com/queueme/scheduling-core/internal/buffer"
	"github.com/queueme/scheduling-core/internal/coreerr"
	"github.com/queueme/scheduling-core/internal/domain"
	"github.com/queueme/scheduling-core/internal/orchestrator"
	"github.com/queueme/scheduling-core/pkg/logger"
)

// BookingHandler exposes the Scheduling Orchestrator over HTTP.
type BookingHandler struct {
	orchestrator *orchestrator.Orchestrator
	logger       *logger.Logger
}

func NewBookingHandler(o *orchestrator.Orchestrator, log *logger.Logger) *BookingHandler {
	return &BookingHandler{orchestrator: o, logger: log}
}

type scheduleRequest struct {
	ShopID       string  `json:"shop_id" binding:"required"`
	ServiceID    string  `json:"service_id" binding:"required"`
	CustomerID   string  `json:"customer_id" binding:"required"`
	TargetDate   string  `json:"target_date" binding:"required"` // YYYY-MM-DD
	TargetTime   *string `json:"target_time"`                    // HH:MM, optional
	SpecialistID string  `json:"specialist_id"`
	Strategy     string  `json:"strategy"`
	Notes        string  `json:"notes"`
	PackageID    *string `json:"package_id"`
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := time.Parse("2006-01-02", req.TargetDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target_date, expected YYYY-MM-DD"})
		return
	}

	var tod *domain.TimeOfDay
	if req.TargetTime != nil {
		t, err := parseTimeOfDay(*req.TargetTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target_time, expected HH:MM"})
			return
		}
		tod = &t
	}

	strategy := domain.SchedulingStrategy(req.Strategy)
	if strategy == "" {
		strategy = domain.StrategyEarliestAvailable
	}

	result, err := h.orchestrator.Schedule(c.Request.Context(), orchestrator.Request{
		ShopID:       req.ShopID,
		ServiceID:    req.ServiceID,
		CustomerID:   req.CustomerID,
		TargetDate:   date,
		TargetTime:   tod,
		SpecialistID: req.SpecialistID,
		Strategy:     strategy,
		Notes:        req.Notes,
		PackageID:    req.PackageID,
	})
	if err != nil {
		h.logger.Error("create booking failed", "error", err)
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	c.JSON(status, scheduleResultBody(result))
}

type multiScheduleRequest struct {
	ShopID                string   `json:"shop_id" binding:"required"`
	ServiceIDs            []string `json:"service_ids" binding:"required"`
	CustomerID            string   `json:"customer_id" binding:"required"`
	TargetDate            string   `json:"target_date" binding:"required"`
	Sequential            bool     `json:"sequential"`
	PreferredSpecialistID string   `json:"preferred_specialist_id"`
	Notes                 string   `json:"notes"`
	PackageID             *string  `json:"package_id"`
}

// CreateMultiBooking handles POST /api/v1/bookings/multi.
func (h *BookingHandler) CreateMultiBooking(c *gin.Context) {
	var req multiScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := time.Parse("2006-01-02", req.TargetDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target_date, expected YYYY-MM-DD"})
		return
	}

	result, err := h.orchestrator.ScheduleMultipleServices(
		c.Request.Context(), req.ShopID, req.ServiceIDs, req.CustomerID, date,
		req.Sequential, req.PreferredSpecialistID, req.Notes, req.PackageID,
	)
	if err != nil {
		h.logger.Error("create multi booking failed", "error", err)
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{
		"success":      result.Success,
		"message":      result.Message,
		"appointments": result.Appointments,
		"partial":      result.Partial,
	})
}

// CancelBooking handles DELETE /api/v1/bookings/:id.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id := c.Param("id")
	result, err := h.orchestrator.Cancel(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("cancel booking failed", "id", id, "error", err)
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	c.JSON(status, scheduleResultBody(result))
}

type rescheduleRequest struct {
	NewDate         *string `json:"new_date"` // YYYY-MM-DD
	NewTime         *string `json:"new_time"` // HH:MM
	NewSpecialistID string  `json:"new_specialist_id"`
}

// RescheduleBooking handles POST /api/v1/bookings/:id/reschedule.
func (h *BookingHandler) RescheduleBooking(c *gin.Context) {
	id := c.Param("id")
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var newDate *time.Time
	if req.NewDate != nil {
		d, err := time.Parse("2006-01-02", *req.NewDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid new_date, expected YYYY-MM-DD"})
			return
		}
		newDate = &d
	}

	var newTime *domain.TimeOfDay
	if req.NewTime != nil {
		t, err := parseTimeOfDay(*req.NewTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid new_time, expected HH:MM"})
			return
		}
		newTime = &t
	}

	result, err := h.orchestrator.Reschedule(c.Request.Context(), id, newDate, newTime, req.NewSpecialistID)
	if err != nil {
		h.logger.Error("reschedule booking failed", "id", id, "error", err)
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusConflict
	}
	c.JSON(status, scheduleResultBody(result))
}

func scheduleResultBody(result orchestrator.Result) gin.H {
	body := gin.H{
		"success": result.Success,
		"message": result.Message,
	}
	if result.Success {
		body["appointment"] = result.Appointment
	}
	if result.Conflicts != nil {
		body["conflicts"] = result.Conflicts
	}
	if len(result.Alternatives) > 0 {
		body["alternatives"] = result.Alternatives
	}
	if result.NextDate != nil {
		body["next_date"] = result.NextDate.Format("2006-01-02")
	}
	return body
}

// AvailabilityHandler exposes the Availability Engine over HTTP.
type AvailabilityHandler struct {
	engine *availability.Engine
	logger *logger.Logger
}

func NewAvailabilityHandler(engine *availability.Engine, log *logger.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{engine: engine, logger: log}
}

// GetSlots handles GET /api/v1/services/:serviceId/slots?date=YYYY-MM-DD[&specialist_id=].
func (h *AvailabilityHandler) GetSlots(c *gin.Context) {
	serviceID := c.Param("serviceId")
	dateStr := c.Query("date")
	specialistID := c.Query("specialist_id")

	if dateStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter is required (YYYY-MM-DD)"})
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	var slots []domain.Slot
	if specialistID != "" {
		slots, err = h.engine.SlotsForSpecialist(c.Request.Context(), serviceID, specialistID, date)
	} else {
		slots, err = h.engine.SlotsForService(c.Request.Context(), serviceID, date)
	}
	if err != nil {
		h.logger.Error("get slots failed", "service_id", serviceID, "error", err)
		writeError(c, err)
		return
	}
	if slots == nil {
		slots = []domain.Slot{}
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// GetAvailableDays handles GET /api/v1/services/:serviceId/available-days?start=YYYY-MM-DD&end=YYYY-MM-DD.
func (h *AvailabilityHandler) GetAvailableDays(c *gin.Context) {
	serviceID := c.Param("serviceId")
	startStr := c.Query("start")
	endStr := c.Query("end")
	if startStr == "" || endStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and end query parameters are required (YYYY-MM-DD)"})
		return
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date"})
		return
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date"})
		return
	}

	days, err := h.engine.AvailableDays(c.Request.Context(), serviceID, start, end)
	if err != nil {
		h.logger.Error("get available days failed", "service_id", serviceID, "error", err)
		writeError(c, err)
		return
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.Format("2006-01-02"))
	}
	c.JSON(http.StatusOK, gin.H{"days": out})
}

// BufferHandler exposes diagnostic Buffer Manager endpoints over HTTP.
type BufferHandler struct {
	buffers *buffer.Manager
	logger  *logger.Logger
}

func NewBufferHandler(buffers *buffer.Manager, log *logger.Logger) *BufferHandler {
	return &BufferHandler{buffers: buffers, logger: log}
}

// CheckConflicts handles GET /api/v1/specialists/:specialistId/buffer-conflicts?date=YYYY-MM-DD.
func (h *BufferHandler) CheckConflicts(c *gin.Context) {
	specialistID := c.Param("specialistId")
	dateStr := c.Query("date")
	if dateStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date query parameter is required (YYYY-MM-DD)"})
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}

	violations, err := h.buffers.CheckConflicts(c.Request.Context(), specialistID, date, c.Query("exclude_id"))
	if err != nil {
		h.logger.Error("check buffer conflicts failed", "specialist_id", specialistID, "error", err)
		writeError(c, err)
		return
	}
	if violations == nil {
		violations = []buffer.Violation{}
	}
	c.JSON(http.StatusOK, gin.H{"violations": violations})
}

// AdjustForBuffer handles POST /api/v1/bookings/:id/adjust-buffer?fix=auto|delay_start|advance_end.
func (h *BufferHandler) AdjustForBuffer(c *gin.Context) {
	id := c.Param("id")
	fix := domain.BufferFixKind(c.DefaultQuery("fix", string(domain.FixAuto)))

	result, err := h.buffers.AdjustForBuffer(c.Request.Context(), id, fix)
	if err != nil {
		h.logger.Error("adjust for buffer failed", "id", id, "error", err)
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

// HealthHandler reports process and dependency liveness.
type HealthHandler struct {
	db    *gorm.DB
	redis *redis.Client
}

func NewHealthHandler(db *gorm.DB, redisClient *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redisClient}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "scheduling-core"})
}

// Ready handles GET /health/ready: pings postgres and redis.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.Ping() != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "database"})
			return
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "redis"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// parseTimeOfDay parses an "HH:MM" string into a domain.TimeOfDay.
func parseTimeOfDay(s string) (domain.TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return domain.TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// writeError maps a typed core error to an HTTP status code; anything
// unrecognized is a 500.
func writeError(c *gin.Context, err error) {
	switch {
	case coreerr.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case coreerr.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case coreerr.IsRetryable(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, coreerr.ErrTooShort):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
