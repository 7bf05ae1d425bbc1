package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ekskul-api/internal/dto"
	"github.com/noah-isme/ekskul-api/internal/middleware"
	"github.com/noah-isme/ekskul-api/internal/models"
	"github.com/noah-isme/ekskul-api/pkg/response"
)

type eventService interface {
	ListByActivity(ctx context.Context, activityID string) ([]models.Event, bool, error)
	Get(ctx context.Context, id string) (*models.Event, error)
	Create(ctx context.Context, req models.CreateEventRequest) (*models.Event, error)
	Attend(ctx context.Context, eventID, userID string) (*models.Event, error)
	RegisterByQR(ctx context.Context, token, userID string) (*models.Event, error)
}

type attendanceMarker interface {
	Mark(ctx context.Context, eventID, markerID string, req models.MarkAttendanceRequest) (*models.MarkAttendanceResponse, error)
}

type analyticsReader interface {
	Analytics(ctx context.Context, activityID string) (*dto.ActivityAnalyticsResponse, error)
}

// EventHandler exposes events, attendee interest and attendance marking.
type EventHandler struct {
	events     eventService
	attendance attendanceMarker
	analytics  analyticsReader
}

// NewEventHandler constructs an event handler.
func NewEventHandler(events eventService, attendance attendanceMarker, analytics analyticsReader) *EventHandler {
	return &EventHandler{events: events, attendance: attendance, analytics: analytics}
}

// ListByActivity godoc
// @Summary List events of an activity
// @Tags Events
// @Produce json
// @Param activityId path string true "Activity ID"
// @Success 200 {array} models.Event
// @Router /events/activity/{activityId} [get]
func (h *EventHandler) ListByActivity(c *gin.Context) {
	events, hit, err := h.events.ListByActivity(c.Request.Context(), c.Param("activityId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, events)
}

// Get godoc
// @Summary Get event detail
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} models.Event
// @Failure 404 {object} response.ErrorBody
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.events.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, event)
}

// Create godoc
// @Summary Schedule an event
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateEventRequest true "Event payload"
// @Success 201 {object} models.Event
// @Failure 400 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	var req models.CreateEventRequest
	if !bindJSON(c, &req, "invalid event payload") {
		return
	}

	event, err := h.events.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Analytics godoc
// @Summary Attendance analytics for an activity
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param activityId path string true "Activity ID"
// @Success 200 {object} dto.ActivityAnalyticsResponse
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /events/analytics/{activityId} [get]
func (h *EventHandler) Analytics(c *gin.Context) {
	res, err := h.analytics.Analytics(c.Request.Context(), c.Param("activityId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// MarkAttendance godoc
// @Summary Mark a student's attendance
// @Description Records present or absent once per student; present credits the event's points.
// @Tags Events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Param payload body models.MarkAttendanceRequest true "Attendance payload"
// @Success 200 {object} models.MarkAttendanceResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /events/{id}/attendance [post]
func (h *EventHandler) MarkAttendance(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.MarkAttendanceRequest
	if !bindJSON(c, &req, "invalid attendance payload") {
		return
	}

	res, err := h.attendance.Mark(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, res)
}

// Attend godoc
// @Summary Register interest in an event
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param id path string true "Event ID"
// @Success 200 {object} dto.EventActionResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /events/{id}/attend [post]
func (h *EventHandler) Attend(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	event, err := h.events.Attend(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.EventActionResponse{Message: "Registered for event", Event: event})
}

// RegisterByQR godoc
// @Summary Register for an event with its QR token
// @Tags Events
// @Produce json
// @Security BearerAuth
// @Param token path string true "QR token"
// @Success 200 {object} dto.EventActionResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /events/register-qr/{token} [post]
func (h *EventHandler) RegisterByQR(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	event, err := h.events.RegisterByQR(c.Request.Context(), c.Param("token"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.EventActionResponse{Message: "Successfully registered via QR code", Event: event})
}
