package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/homease/service-booking/internal/application"
	"github.com/homease/service-booking/internal/domain/booking"
	"github.com/homease/service-booking/internal/pkg/auth"
	"github.com/homease/service-booking/internal/pkg/middleware"
	"github.com/homease/service-booking/internal/pkg/response"
)

// BookingHandler handles HTTP requests for the booking lifecycle.
type BookingHandler struct {
	service *application.BookingService
	sweeper *application.Sweeper
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(service *application.BookingService, sweeper *application.Sweeper) *BookingHandler {
	return &BookingHandler{service: service, sweeper: sweeper}
}

// RegisterRoutes registers all booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	bookings := r.Group("/api/v1/bookings")
	bookings.Use(authMW)
	{
		bookings.POST("", middleware.RequireRole(auth.RoleCustomer), h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.GET("/:id/invoice", h.GetInvoice)
		bookings.POST("/:id/accept", middleware.RequireRole(auth.RoleProvider), h.AcceptBooking)
		bookings.POST("/:id/reject", middleware.RequireRole(auth.RoleProvider), h.RejectBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/start", middleware.RequireRole(auth.RoleProvider), h.StartService)
		bookings.POST("/:id/complete/initiate", middleware.RequireRole(auth.RoleProvider), h.InitiateCompletion)
		bookings.POST("/:id/complete/verify", middleware.RequireRole(auth.RoleProvider), h.VerifyCompletion)
		bookings.POST("/:id/payment", middleware.RequireRole(auth.RoleProvider), h.RecordPayment)
	}
}

// actorFromContext maps the authenticated identity onto a lifecycle actor.
func actorFromContext(c *gin.Context) (booking.Actor, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		return booking.Actor{}, false
	}
	role, ok := middleware.GetUserRole(c)
	if !ok {
		return booking.Actor{}, false
	}
	return booking.Actor{ID: userID, Role: booking.ActorRole(role)}, true
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateBooking(c.Request.Context(), actor.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListBookings handles GET /api/v1/bookings. Customers see their own
// bookings, providers see bookings addressed to them. Every list read also
// opportunistically triggers the stale-booking sweep.
func (h *BookingHandler) ListBookings(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	h.sweeper.TriggerSweep(c.Request.Context())

	page, limit := parsePagination(c)

	var (
		items []application.BookingDTO
		total int64
		err   error
	)
	switch actor.Role {
	case booking.RoleProvider:
		items, total, err = h.service.ListForProvider(c.Request.Context(), actor.ID, page, limit)
	default:
		items, total, err = h.service.ListForCustomer(c.Request.Context(), actor.ID, page, limit)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Paginated(c, items, total, page, limit)
}

// GetBooking handles GET /api/v1/bookings/:id.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	result, err := h.service.GetBooking(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetInvoice handles GET /api/v1/bookings/:id/invoice.
func (h *BookingHandler) GetInvoice(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	result, err := h.service.ComputeInvoice(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// AcceptBooking handles POST /api/v1/bookings/:id/accept.
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	h.transition(c, booking.StatusConfirmed)
}

// RejectBooking handles POST /api/v1/bookings/:id/reject.
func (h *BookingHandler) RejectBooking(c *gin.Context) {
	h.transition(c, booking.StatusRejected)
}

// StartService handles POST /api/v1/bookings/:id/start.
func (h *BookingHandler) StartService(c *gin.Context) {
	h.transition(c, booking.StatusInProgress)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	h.transition(c, booking.StatusCancelled)
}

func (h *BookingHandler) transition(c *gin.Context, target booking.BookingStatus) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)

	result, err := h.service.Transition(c.Request.Context(), bookingID, actor, target, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// InitiateCompletion handles POST /api/v1/bookings/:id/complete/initiate.
func (h *BookingHandler) InitiateCompletion(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	result, err := h.service.InitiateCompletion(c.Request.Context(), bookingID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// VerifyCompletion handles POST /api/v1/bookings/:id/complete/verify.
func (h *BookingHandler) VerifyCompletion(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var body struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "completion code is required")
		return
	}

	result, err := h.service.VerifyCompletion(c.Request.Context(), bookingID, actor, body.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RecordPayment handles POST /api/v1/bookings/:id/payment.
func (h *BookingHandler) RecordPayment(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid booking ID")
		return
	}

	actor, ok := actorFromContext(c)
	if !ok {
		response.Unauthorized(c)
		return
	}

	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "payment status is required")
		return
	}

	status := booking.PaymentStatus(body.Status)
	if !status.IsValid() {
		response.BadRequest(c, "invalid payment status")
		return
	}

	result, err := h.service.RecordPayment(c.Request.Context(), bookingID, actor, status)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
