package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	accessdomain "github.com/smallbiznis/campus/internal/access/domain"
	auditdomain "github.com/smallbiznis/campus/internal/audit/domain"
	coursedomain "github.com/smallbiznis/campus/internal/course/domain"
	"github.com/smallbiznis/campus/internal/coursekey"
	enrollmentdomain "github.com/smallbiznis/campus/internal/enrollment/domain"
	micrositedomain "github.com/smallbiznis/campus/internal/microsite/domain"
	"github.com/smallbiznis/campus/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

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
		c.Header("Content-Type", "application/json")
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

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	// Business-rule refusals carry their own type so clients can tell a
	// closed course from a full one.
	if errors.Is(err, enrollmentdomain.ErrCourseEnrollment) && !errors.Is(err, enrollmentdomain.ErrNonExistentCourse) {
		return http.StatusBadRequest, errorPayload{
			Type:    err.Error(),
			Message: strings.ReplaceAll(err.Error(), "_", " "),
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, enrollmentdomain.ErrAnonymousUser):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, enrollmentdomain.ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, coursedomain.ErrAlreadyExists),
		errors.Is(err, micrositedomain.ErrKeyTaken),
		errors.Is(err, micrositedomain.ErrSubdomainTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, coursekey.ErrInvalidKey),
		errors.Is(err, pagination.ErrInvalidPageToken),
		errors.Is(err, enrollmentdomain.ErrInvalidMode),
		errors.Is(err, enrollmentdomain.ErrInvalidEmail),
		errors.Is(err, enrollmentdomain.ErrInvalidAttribute),
		errors.Is(err, coursedomain.ErrInvalidName),
		errors.Is(err, coursedomain.ErrInvalidMaxAllowed),
		errors.Is(err, coursedomain.ErrInvalidWindow),
		errors.Is(err, coursedomain.ErrInvalidModes),
		errors.Is(err, accessdomain.ErrInvalidRole),
		errors.Is(err, accessdomain.ErrInvalidUser),
		errors.Is(err, accessdomain.ErrInvalidOrg),
		errors.Is(err, accessdomain.ErrInvalidEmail),
		errors.Is(err, auditdomain.ErrInvalidFilter),
		errors.Is(err, micrositedomain.ErrInvalidKey),
		errors.Is(err, micrositedomain.ErrInvalidSubdomain),
		errors.Is(err, micrositedomain.ErrInvalidOrgFilter):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, enrollmentdomain.ErrNonExistentCourse),
		errors.Is(err, enrollmentdomain.ErrNotFound),
		errors.Is(err, coursedomain.ErrNotFound),
		errors.Is(err, micrositedomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog feeds the request logger with the mapped error type.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return http.StatusText(status), code
}
