package serverutils

import (
	"errors"

	"ai-study-portal-be/internal/pkg/logger"
	"ai-study-portal-be/pkg/store"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware renders errors returned by handlers as a Response.
// Unrecognised errors become a 500 with a generic message; the cause is
// logged, never sent.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var verr *ValidationError
		if errors.As(err, &verr) {
			resp := ErrorResponse(fiber.StatusBadRequest, "validation failed")
			resp.Errors = verr.Fields
			return ctx.Status(fiber.StatusBadRequest).JSON(resp)
		}

		code, message := statusFor(err)
		if code >= fiber.StatusInternalServerError {
			log.Error("HTTP", "Unhandled request error", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err.Error(),
			})
		}
		return ctx.Status(code).JSON(ErrorResponse(code, message))
	}
}

func statusFor(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, store.ErrSessionBusy):
		return fiber.StatusConflict, err.Error()
	case errors.Is(err, store.ErrEmptyMessage), errors.Is(err, store.ErrInvalidMode):
		return fiber.StatusBadRequest, err.Error()
	case errors.As(err, &fe):
		return fe.Code, fe.Message
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}
