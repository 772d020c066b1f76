package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-profilesync/pkg/types"
)

// ErrorBody is the JSON envelope returned for failed requests.
type ErrorBody struct {
	Error ErrorPayload `json:"error"`
}

// ErrorPayload describes one failure.
type ErrorPayload struct {
	Category  string         `json:"category,omitempty"`
	Code      int            `json:"code"`
	TextCode  string         `json:"text_code,omitempty"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ErrorHandler renders err as an ErrorBody. It is installed as the fiber
// application error handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	payload := toPayload(err)
	return c.Status(payload.Code).JSON(ErrorBody{Error: payload})
}

func toPayload(err error) ErrorPayload {
	if rich, ok := types.RichError(err); ok {
		code := rich.Code
		if code == 0 {
			code = http.StatusInternalServerError
		}
		var retry *errors.RetryableError
		return ErrorPayload{
			Category:  fmt.Sprint(rich.Category),
			Code:      code,
			TextCode:  rich.TextCode,
			Message:   rich.Message,
			Retryable: errors.As(err, &retry),
			Metadata:  rich.Metadata,
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ErrorPayload{Code: fiberErr.Code, Message: fiberErr.Message}
	}

	switch {
	case errors.Is(err, types.ErrUserIDRequired), errors.Is(err, types.ErrProfileNameRequired):
		return ErrorPayload{Code: http.StatusBadRequest, TextCode: types.TextCodeMalformedPayload, Message: err.Error()}
	case errors.Is(err, types.ErrServiceNotReady),
		errors.Is(err, types.ErrMissingProfileRepository),
		errors.Is(err, types.ErrMissingActivityRepository):
		return ErrorPayload{Code: http.StatusServiceUnavailable, Message: err.Error()}
	default:
		return ErrorPayload{Code: http.StatusInternalServerError, Message: "internal error"}
	}
}
