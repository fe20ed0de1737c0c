package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/and161185/gymdesk/internal/errs"
)

// statusOf maps domain sentinels to HTTP status and client-facing detail.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusBadRequest, "email or document already registered in this gym"
	case errors.Is(err, errs.ErrInactive):
		return http.StatusBadRequest, "inactive user"
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, "incorrect email or password"
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, "not enough permissions"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "too many attempts"
	}
	return http.StatusInternalServerError, "internal"
}

func abort(c *gin.Context, err error) {
	code, detail := statusOf(err)
	if code == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(code, gin.H{"detail": detail})
}
