package serverutils

import (
	"errors"

	"ai-chat-core/pkg/stream"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type Response[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func SuccessResponse[T any](message string, data T) Response[T] {
	return Response[T]{Message: message, Data: data}
}

var validate = validator.New()

func ValidateRequest(req interface{}) error {
	return validate.Struct(req)
}

// ErrorHandlerMiddleware maps domain errors to HTTP statuses so controllers
// can just return them.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var validationErrs validator.ValidationErrors
		var transportErr *stream.TransportError
		var fiberErr *fiber.Error

		switch {
		case errors.As(err, &validationErrs):
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
		case errors.Is(err, stream.ErrStreamBusy):
			return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "A response is already streaming for this session"})
		case errors.Is(err, stream.ErrUnauthenticated):
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "No valid credential for the stream backend"})
		case errors.Is(err, stream.ErrStreamCancelled):
			return ctx.Status(fiber.StatusConflict).JSON(fiber.Map{"message": "Stream was cancelled"})
		case errors.As(err, &transportErr):
			return ctx.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"message": "Stream failed mid-response",
				"partial": transportErr.Partial,
			})
		case errors.As(err, &fiberErr):
			return ctx.Status(fiberErr.Code).JSON(fiber.Map{"message": fiberErr.Message})
		default:
			return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
		}
	}
}
