package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	dcrdomain "github.com/nimbusworks/tenantgate/internal/dcr/domain"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInternal     = errors.New("internal_error")
)

// registrationError is the RFC 7591 error body returned on the DCR path.
type registrationError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware renders any error recorded on the context that no
// handler wrote a response for.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if status == http.StatusUnauthorized {
			c.Header("WWW-Authenticate", "Bearer")
		}
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "authentication required",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "insufficient scope",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// mapRegistrationError translates DCR service errors into RFC 7591 status
// and body pairs. Anything unrecognized is a server_error so the caller
// retries rather than giving up on a transient fault.
func mapRegistrationError(err error) (int, registrationError) {
	switch {
	case errors.Is(err, dcrdomain.ErrInvalidSoftwareStatement):
		return http.StatusBadRequest, registrationError{
			Error:            "invalid_software_statement",
			ErrorDescription: "software statement could not be verified",
		}
	case errors.Is(err, dcrdomain.ErrUnapprovedSoftwareStatement):
		return http.StatusForbidden, registrationError{
			Error:            "unapproved_software_statement",
			ErrorDescription: "no entitlement exists for this order",
		}
	case errors.Is(err, dcrdomain.ErrInvalidRequest):
		return http.StatusBadRequest, registrationError{
			Error:            "invalid_request",
			ErrorDescription: "registration request is malformed",
		}
	case errors.Is(err, dcrdomain.ErrRegistrationDisabled):
		return http.StatusForbidden, registrationError{
			Error:            "invalid_request",
			ErrorDescription: "dynamic client registration is disabled",
		}
	default:
		return http.StatusInternalServerError, registrationError{
			Error:            "server_error",
			ErrorDescription: "registration could not be completed",
		}
	}
}
