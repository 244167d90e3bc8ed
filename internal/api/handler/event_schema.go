package handler

import (
	"encoding/json"

	"github.com/pixel-analytics/pixel/internal/core/domain"
)

const (
	actionIdentify = "identify"
	actionTrack    = "track"
)

// eventRequest is the single body accepted by the events endpoint. Action
// selects how the remaining fields are read.
type eventRequest struct {
	Action      string          `json:"action"`
	ID          string          `json:"id,omitempty"          validate:"max=8192"`
	AnonymousID string          `json:"anonymousId,omitempty" validate:"max=128"`
	Event       string          `json:"event,omitempty"       validate:"max=256"`
	Data        json.RawMessage `json:"data,omitempty"        swaggertype:"object"`
}

// identifyProfile is the shape of data on identify calls.
type identifyProfile struct {
	Email  string       `json:"email"            validate:"required,email"`
	Name   string       `json:"name,omitempty"   validate:"max=256"`
	Image  string       `json:"image,omitempty"  validate:"omitempty,url"`
	UserID string       `json:"userId,omitempty" validate:"max=256"`
	Data   domain.Value `json:"data,omitzero"    swaggertype:"object"`
}

type statusResponse struct {
	Status string `json:"status" example:"OK"`
}

// identifyResponse always carries the jwt key; null means no token was issued.
type identifyResponse struct {
	Status string  `json:"status" example:"OK"`
	JWT    *string `json:"jwt"`
}

type errorResponse struct {
	Error string `json:"error"`
}
