package handler

import (
	"net/http"

	"lendflow/internal/apperr"
	"lendflow/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusForKind maps the domain error taxonomy onto stable HTTP statuses.
// Conflict-class kinds (the caller raced someone, or the state moved on) are
// 409; semantically valid but unprocessable requests are 422.
func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidTransition,
		apperr.KindDuplicateOpenQuery,
		apperr.KindThreadResolved,
		apperr.KindAlreadyResolved,
		apperr.KindOutstandingRequestExists:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindEditWindowExpired,
		apperr.KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

// writeError renders a service error as the standard envelope.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusForKind(kind)
	c.JSON(status, response.ErrorWithKind(status, string(kind), err.Error()))
}

// writeBindError renders a gin binding failure.
func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest,
		response.ErrorWithKind(http.StatusBadRequest, string(apperr.KindValidation), err.Error()))
}
