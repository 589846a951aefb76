package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatstore/internal/shared"
)

// statusFromError maps the shared error kinds onto HTTP statuses.
func statusFromError(err error) int {
	switch shared.KindOf(err) {
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindValidation:
		return http.StatusBadRequest
	case shared.KindConflict:
		return http.StatusConflict
	case shared.KindBusy:
		return http.StatusServiceUnavailable
	case shared.KindNotConnected, shared.KindConnection:
		return http.StatusServiceUnavailable
	case shared.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error as a JSON body with the mapped status.
func fail(c *gin.Context, err error) {
	status := statusFromError(err)

	body := gin.H{"error": err.Error()}
	if status == http.StatusInternalServerError {
		// Internal details stay in the logs
		body["error"] = "internal error"
	}
	c.JSON(status, body)
	c.Error(err) //nolint:errcheck
}
