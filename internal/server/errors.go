package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/dshills/asmexplain/internal/artifact"
	"github.com/dshills/asmexplain/internal/providers"
)

// ErrorBody is the JSON body of a failed request.
type ErrorBody struct {
	Detail string `json:"detail"`
	Hint   string `json:"hint,omitempty"`
}

// StatusFor maps an error from the explanation pipeline to an HTTP status and
// response body.
func StatusFor(err error) (int, ErrorBody) {
	var (
		nf *artifact.NotFoundError
		fe *artifact.FormatError
		ce *providers.ConfigurationError
		le *providers.LLMError
	)
	switch {
	case errors.Is(err, artifact.ErrInvalidID):
		return http.StatusBadRequest, ErrorBody{
			Detail: err.Error(),
			Hint:   "Ids may only contain letters, digits, '.', '_' and '-'.",
		}
	case errors.As(err, &nf):
		return http.StatusNotFound, ErrorBody{Detail: nf.Error()}
	case errors.As(err, &fe):
		return http.StatusInternalServerError, ErrorBody{Detail: fe.Error() + ", cannot explain"}
	case errors.As(err, &ce):
		return http.StatusInternalServerError, ErrorBody{
			Detail: "Failed to get explanation from AI: " + ce.Error(),
			Hint:   ce.Hint,
		}
	case errors.As(err, &le):
		return http.StatusInternalServerError, ErrorBody{
			Detail: "Failed to get explanation from AI: " + le.Error(),
			Hint:   le.Hint(),
		}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrorBody{Detail: "request canceled"}
	default:
		return http.StatusInternalServerError, ErrorBody{Detail: "internal error"}
	}
}
