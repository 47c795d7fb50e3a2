package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/nvr-ai/ingredient-vision/pipeline"
	"github.com/nvr-ai/ingredient-vision/recipes"
	"github.com/nvr-ai/ingredient-vision/selection"
)

// StatusClientClosedRequest is returned for scans cancelled before they finished.
const StatusClientClosedRequest = 499

var errSessionNotFound = errors.New("session not found")

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Retry bool   `json:"retry"`
}

// statusFor maps a failure to its HTTP status and the kind reported to the client.
func statusFor(err error) (int, string) {
	switch kind := pipeline.KindOf(err); kind {
	case pipeline.KindInvalidImage:
		return http.StatusUnprocessableEntity, string(kind)
	case pipeline.KindModelLoad:
		return http.StatusServiceUnavailable, string(kind)
	case pipeline.KindInference, pipeline.KindUnknownClass:
		return http.StatusInternalServerError, string(kind)
	case pipeline.KindCancelled:
		return StatusClientClosedRequest, string(kind)
	}

	var serviceErr *recipes.Error
	switch {
	case errors.Is(err, selection.ErrSelectionLimitExceeded):
		return http.StatusConflict, "selection_limit_exceeded"
	case errors.Is(err, selection.ErrStaleScan):
		return http.StatusConflict, "stale_scan"
	case errors.Is(err, selection.ErrNotDetected):
		return http.StatusNotFound, "not_detected"
	case errors.Is(err, errSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.As(err, &serviceErr), errors.Is(err, recipes.ErrUnavailable):
		return http.StatusBadGateway, "recipe_service"
	}
	return http.StatusInternalServerError, ""
}

// abort writes err as JSON and stops the handler chain.
func abort(c *gin.Context, err error) {
	status, kind := statusFor(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{
		Error: err.Error(),
		Kind:  kind,
		Retry: pipeline.KindOf(err) != "",
	})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}
