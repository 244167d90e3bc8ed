package handler

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/pixel-analytics/pixel/internal/api/metrics"
	"github.com/pixel-analytics/pixel/internal/core/domain"
	"github.com/pixel-analytics/pixel/internal/core/ports"
)

// EventHandler serves the identify and track actions.
type EventHandler struct {
	gateway ports.EventGateway
	log     zerolog.Logger
}

// NewEventHandler creates an EventHandler backed by the given gateway.
func NewEventHandler(gateway ports.EventGateway, log zerolog.Logger) *EventHandler {
	return &EventHandler{gateway: gateway, log: log}
}

// Receive handles POST /api/events.
//
// @Summary      Identify a user or track an event
// @Description  action=identify returns a signed token for the profile in data.
// @Description  action=track records an event; the token travels in id or as a Bearer header.
// @Tags         events
// @Accept       json
// @Produce      json
// @Param        body  body      eventRequest  true  "Identify or track call"
// @Success      200   {object}  identifyResponse
// @Failure      400   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /api/events [post]
func (h *EventHandler) Receive(c echo.Context) error {
	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	switch req.Action {
	case actionIdentify:
		return h.identify(c, req)
	case actionTrack:
		return h.track(c, req)
	default:
		return domain.ErrUnknownAction
	}
}

func (h *EventHandler) identify(c echo.Context, req eventRequest) error {
	if len(req.Data) == 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "data is required")
	}
	var profile identifyProfile
	if err := sonic.Unmarshal(req.Data, &profile); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid identify data")
	}
	if err := c.Validate(&profile); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	jwt := h.gateway.Identify(c.Request().Context(), ports.IdentifyInput{
		Email:  profile.Email,
		Name:   profile.Name,
		Image:  profile.Image,
		UserID: profile.UserID,
		Data:   profile.Data,
	})

	resp := identifyResponse{Status: "OK"}
	if jwt != "" {
		resp.JWT = &jwt
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *EventHandler) track(c echo.Context, req eventRequest) error {
	var data domain.Value
	if len(req.Data) > 0 {
		if err := data.UnmarshalJSON(req.Data); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid event data")
		}
	}

	err := h.gateway.Track(c.Request().Context(), ports.TrackInput{
		Event:       req.Event,
		AnonymousID: req.AnonymousID,
		User:        h.resolveUser(c, req.ID),
		Data:        data,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "OK"})
}

// resolveUser prefers the token in the body over the Authorization header.
// A token that fails verification downgrades the call to anonymous.
func (h *EventHandler) resolveUser(c echo.Context, token string) *domain.IdentityClaims {
	if token == "" {
		return ctxClaims(c)
	}
	claims, err := h.gateway.VerifyToken(token)
	if err != nil {
		metrics.TokenRejectedTotal.Inc()
		h.log.Warn().Err(err).
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Msg("track: token rejected, tracking anonymously")
		return nil
	}
	return &claims
}
