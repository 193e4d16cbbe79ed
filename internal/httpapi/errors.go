package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
	"github.com/FunkyDevv/ITRACK-sub000/internal/attendance"
	"github.com/FunkyDevv/ITRACK-sub000/internal/auth"
)

// writeError renders err as {"error", "code"} with the status of its kind.
func writeError(c *gin.Context, err error) {
	var status int
	var code, msg string
	switch {
	case errors.Is(err, attendance.ErrEventNotFound):
		status, code, msg = http.StatusNotFound, "not_found", attendance.ErrEventNotFound.Message
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, code, msg = http.StatusUnauthorized, "unauthorized", err.Error()
	default:
		kind := apperr.KindOf(err)
		status, code, msg = apperr.HTTPStatus(kind), string(kind), apperr.Message(err)
	}
	if status >= http.StatusInternalServerError {
		log.Ctx(c.Request.Context()).Error().Err(err).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg, "code": string(apperr.KindValidation)})
}

func forbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "code": "forbidden"})
}
