// Package authz maps roles onto the operations they may perform.
package authz

import "github.com/noah-isme/ekskul-api/internal/models"

// Capability names a guarded operation.
type Capability string

const (
	ActivityManage Capability = "activity:manage"
	ActivityEnroll Capability = "activity:enroll"
	EventManage    Capability = "event:manage"
	AnalyticsView  Capability = "analytics:view"
	AttendanceMark Capability = "attendance:mark"
)

var grants = map[models.UserRole]map[Capability]struct{}{
	models.RoleAdmin: {
		ActivityManage: {},
		EventManage:    {},
		AnalyticsView:  {},
		AttendanceMark: {},
	},
	models.RoleCoordinator: {
		EventManage:    {},
		AnalyticsView:  {},
		AttendanceMark: {},
	},
	models.RoleStudent: {
		ActivityEnroll: {},
	},
}

// Allowed reports whether a principal may exercise the capability. Elevated
// roles hold their grants only once approved.
func Allowed(role models.UserRole, status models.RoleStatus, capability Capability) bool {
	if role.Elevated() && status != models.RoleStatusApproved {
		return false
	}
	_, ok := grants[role][capability]
	return ok
}

// Capabilities lists the grants of a role.
func Capabilities(role models.UserRole) []Capability {
	out := make([]Capability, 0, len(grants[role]))
	for _, c := range []Capability{ActivityManage, ActivityEnroll, EventManage, AnalyticsView, AttendanceMark} {
		if _, ok := grants[role][c]; ok {
			out = append(out, c)
		}
	}
	return out
}
