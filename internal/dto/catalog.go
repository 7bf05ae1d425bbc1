package dto

import "github.com/noah-isme/ekskul-api/internal/models"

// ActivityActionResponse acknowledges an enrollment change.
type ActivityActionResponse struct {
	Message  string           `json:"message"`
	Activity *models.Activity `json:"activity,omitempty"`
}

// EventActionResponse acknowledges an attendee change.
type EventActionResponse struct {
	Message string        `json:"message"`
	Event   *models.Event `json:"event"`
}
