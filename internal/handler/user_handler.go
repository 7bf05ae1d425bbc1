package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ekskul-api/internal/dto"
	"github.com/noah-isme/ekskul-api/internal/models"
	"github.com/noah-isme/ekskul-api/pkg/response"
)

type profileReader interface {
	Profile(ctx context.Context, id string) (*models.UserProfile, error)
}

type registeredEventsReader interface {
	RegisteredEvents(ctx context.Context, userID string) ([]models.Event, error)
}

type leaderboardReader interface {
	Leaderboard(ctx context.Context) ([]dto.LeaderboardEntry, error)
}

// UserHandler serves profiles and the points leaderboard.
type UserHandler struct {
	profiles    profileReader
	events      registeredEventsReader
	leaderboard leaderboardReader
}

// NewUserHandler constructs a user handler.
func NewUserHandler(profiles profileReader, events registeredEventsReader, leaderboard leaderboardReader) *UserHandler {
	return &UserHandler{profiles: profiles, events: events, leaderboard: leaderboard}
}

// Get godoc
// @Summary Get user profile
// @Description Points, enrolled activities and attendance history
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.UserProfile
// @Failure 404 {object} response.ErrorBody
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	profile, err := h.profiles.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, profile)
}

// RegisteredEvents godoc
// @Summary Events the user registered for
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {array} models.Event
// @Router /users/{id}/registered-events [get]
func (h *UserHandler) RegisteredEvents(c *gin.Context) {
	events, err := h.events.RegisteredEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, events)
}

// Leaderboard godoc
// @Summary Top ten students by points
// @Tags Users
// @Produce json
// @Success 200 {array} dto.LeaderboardEntry
// @Router /users/leaderboard/top [get]
func (h *UserHandler) Leaderboard(c *gin.Context) {
	entries, err := h.leaderboard.Leaderboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}
