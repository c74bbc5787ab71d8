// Package handlers implements the REST API endpoints.
package handlers

import (
	"errors"
	"net/http"

	"github.com/charquest/ml-service/internal/api/response"
	"github.com/charquest/ml-service/internal/ml"
)

// writeModelError maps model errors onto HTTP status codes. Caller
// mistakes are 400s, an untrained model is 503, everything else is a
// server fault.
func writeModelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ml.ErrNotTrained):
		response.ServiceUnavailable(w, err)
	case errors.Is(err, ml.ErrUnknownCategory),
		errors.Is(err, ml.ErrInvalidRecord),
		errors.Is(err, ml.ErrInsufficientData),
		errors.Is(err, ml.ErrInvalidArgument):
		response.BadRequest(w, err)
	default:
		response.InternalError(w, err)
	}
}
