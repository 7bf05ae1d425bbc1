package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/ekskul-api/internal/authz"
	"github.com/noah-isme/ekskul-api/internal/middleware"
	"github.com/noah-isme/ekskul-api/internal/models"
)

// Handlers groups the endpoint handlers mounted under the API prefix.
type Handlers struct {
	Auth          *AuthHandler
	Activities    *ActivityHandler
	Events        *EventHandler
	Notifications *NotificationHandler
	Users         *UserHandler
}

// RouteDeps carries the middleware collaborators of the API routes.
type RouteDeps struct {
	Tokens middleware.TokenValidator
	Audit  middleware.AuditWriter
	Logger *zap.Logger
}

// RegisterRoutes mounts every API endpoint on api.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, deps RouteDeps) {
	auth := middleware.JWT(deps.Tokens)
	can := middleware.RequireCapability
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(deps.Audit, deps.Logger, action, resource)
	}

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)

	activities := api.Group("/activities")
	activities.GET("", h.Activities.List)
	activities.GET("/recommendations/:userId", auth, h.Activities.Recommendations)
	activities.GET("/:id", h.Activities.Get)
	activities.POST("", auth, can(authz.ActivityManage), audit(models.AuditActionActivityCreate, "activities"), h.Activities.Create)
	activities.PUT("/:id", auth, can(authz.ActivityManage), audit(models.AuditActionActivityUpdate, "activities"), h.Activities.Update)
	activities.DELETE("/:id", auth, can(authz.ActivityManage), audit(models.AuditActionActivityDelete, "activities"), h.Activities.Delete)
	activities.POST("/:id/register", auth, can(authz.ActivityEnroll), audit(models.AuditActionActivityRegister, "activities"), h.Activities.Register)
	activities.POST("/:id/unregister", auth, can(authz.ActivityEnroll), audit(models.AuditActionActivityLeave, "activities"), h.Activities.Unregister)

	events := api.Group("/events")
	events.GET("/activity/:activityId", h.Events.ListByActivity)
	events.GET("/analytics/:activityId", auth, can(authz.AnalyticsView), h.Events.Analytics)
	events.POST("/register-qr/:token", auth, h.Events.RegisterByQR)
	events.POST("", auth, can(authz.EventManage), audit(models.AuditActionEventCreate, "events"), h.Events.Create)
	events.GET("/:id", auth, h.Events.Get)
	events.POST("/:id/attendance", auth, can(authz.AttendanceMark), audit(models.AuditActionAttendanceMark, "events"), h.Events.MarkAttendance)
	events.POST("/:id/attend", auth, h.Events.Attend)

	notifications := api.Group("/notifications", auth)
	notifications.GET("", h.Notifications.List)
	notifications.PUT("/:id/read", h.Notifications.MarkRead)

	users := api.Group("/users")
	users.GET("/leaderboard/top", h.Users.Leaderboard)
	users.GET("/:id", auth, h.Users.Get)
	users.GET("/:id/registered-events", auth, h.Users.RegisteredEvents)
}
