package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ekskul-api/internal/dto"
	"github.com/noah-isme/ekskul-api/internal/middleware"
	"github.com/noah-isme/ekskul-api/internal/models"
	"github.com/noah-isme/ekskul-api/pkg/response"
)

type activityService interface {
	List(ctx context.Context) ([]models.Activity, bool, error)
	Get(ctx context.Context, id string) (*models.Activity, error)
	Create(ctx context.Context, creatorID string, req models.CreateActivityRequest) (*models.Activity, error)
	Update(ctx context.Context, id string, req models.UpdateActivityRequest) (*models.Activity, error)
	Delete(ctx context.Context, id string) error
	Register(ctx context.Context, activityID, studentID string) (*models.Activity, error)
	Unregister(ctx context.Context, activityID, studentID string) error
}

type recommender interface {
	Recommendations(ctx context.Context, userID string) ([]models.Activity, error)
}

// ActivityHandler exposes the activity catalog.
type ActivityHandler struct {
	service     activityService
	recommender recommender
}

// NewActivityHandler constructs an activity handler.
func NewActivityHandler(svc activityService, rec recommender) *ActivityHandler {
	return &ActivityHandler{service: svc, recommender: rec}
}

// List godoc
// @Summary List activities
// @Tags Activities
// @Produce json
// @Success 200 {array} models.Activity
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	activities, hit, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.OK(c, activities)
}

// Get godoc
// @Summary Get activity detail
// @Tags Activities
// @Produce json
// @Param id path string true "Activity ID"
// @Success 200 {object} models.Activity
// @Failure 404 {object} response.ErrorBody
// @Router /activities/{id} [get]
func (h *ActivityHandler) Get(c *gin.Context) {
	activity, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, activity)
}

// Create godoc
// @Summary Create activity
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateActivityRequest true "Activity payload"
// @Success 201 {object} models.Activity
// @Failure 400 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Router /activities [post]
func (h *ActivityHandler) Create(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req models.CreateActivityRequest
	if !bindJSON(c, &req, "invalid activity payload") {
		return
	}

	activity, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, activity)
}

// Update godoc
// @Summary Update activity
// @Tags Activities
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Activity ID"
// @Param payload body models.UpdateActivityRequest true "Fields to change"
// @Success 200 {object} models.Activity
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /activities/{id} [put]
func (h *ActivityHandler) Update(c *gin.Context) {
	var req models.UpdateActivityRequest
	if !bindJSON(c, &req, "invalid activity payload") {
		return
	}

	activity, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, activity)
}

// Delete godoc
// @Summary Delete activity
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Message
// @Failure 404 {object} response.ErrorBody
// @Router /activities/{id} [delete]
func (h *ActivityHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Ack(c, "Activity deleted")
}

// Register godoc
// @Summary Enroll in an activity
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param id path string true "Activity ID"
// @Success 200 {object} dto.ActivityActionResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /activities/{id}/register [post]
func (h *ActivityHandler) Register(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	activity, err := h.service.Register(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ActivityActionResponse{Message: "Registered successfully", Activity: activity})
}

// Unregister godoc
// @Summary Leave an activity
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param id path string true "Activity ID"
// @Success 200 {object} response.Message
// @Failure 404 {object} response.ErrorBody
// @Router /activities/{id}/unregister [post]
func (h *ActivityHandler) Unregister(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}

	if err := h.service.Unregister(c.Request.Context(), c.Param("id"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Ack(c, "Unregistered successfully")
}

// Recommendations godoc
// @Summary Recommend activities
// @Description Up to five activities sharing a category with the user's enrollments
// @Tags Activities
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {array} models.Activity
// @Failure 404 {object} response.ErrorBody
// @Router /activities/recommendations/{userId} [get]
func (h *ActivityHandler) Recommendations(c *gin.Context) {
	activities, err := h.recommender.Recommendations(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, activities)
}
