package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"strategy-game-server/engine"
	"strategy-game-server/logger"
)

// statusFor maps an engine error to its HTTP status.
func statusFor(e *engine.Error) int {
	switch e.Kind {
	case engine.KindConfiguration:
		return fiber.StatusBadRequest
	case engine.KindAuthorization:
		return fiber.StatusForbidden
	case engine.KindResource:
		return fiber.StatusUnprocessableEntity
	case engine.KindNotFound:
		return fiber.StatusNotFound
	case engine.KindStateConflict:
		if e.Code == engine.CodeInvalidAction {
			return fiber.StatusBadRequest
		}
		return fiber.StatusConflict
	}
	return fiber.StatusInternalServerError
}

// respondError writes a structured body for player-caused failures. Anything
// else is logged and answered with an opaque 500.
func respondError(c *fiber.Ctx, err error) error {
	var e *engine.Error
	if !errors.As(err, &e) {
		logger.Component("http").WithError(err).
			WithField("path", c.Path()).
			WithField("method", c.Method()).
			Error("Internal error.")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	body := fiber.Map{
		"error": e.Code,
		"kind":  e.Kind.String(),
	}
	if e.Detail != "" {
		body["detail"] = e.Detail
	}
	if e.Action != "" {
		body["action"] = e.Action
	}
	var ae *engine.ActionError
	if errors.As(err, &ae) {
		body["action_index"] = ae.Index
		if ae.Action != "" {
			body["action"] = ae.Action
		}
	}
	return c.Status(statusFor(e)).JSON(body)
}
