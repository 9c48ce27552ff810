// Package dto provides Data Transfer Objects for HTTP request/response handling.
package dto

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotebook/internal/domain"
	"github.com/jsamuelsen/quotebook/internal/platform/logging"
)

// ErrorResponse is the standard error envelope for all error responses.
// It provides a consistent structure for API error handling.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	// Code is a machine-readable error code (e.g., "NOT_FOUND", "VALIDATION_ERROR").
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details provides additional context about the error.
	// For validation errors, this contains field-level error messages.
	Details map[string]string `json:"details,omitempty"`
}

// Error codes for machine-readable error identification.
const (
	// ErrorCodeNotFound indicates the requested resource was not found.
	ErrorCodeNotFound = "NOT_FOUND"

	// ErrorCodeConflict indicates a state conflict not covered by a narrower code.
	ErrorCodeConflict = "CONFLICT"

	// ErrorCodeDuplicateName indicates the quote name is already taken.
	ErrorCodeDuplicateName = "DUPLICATE_NAME"

	// ErrorCodeAlreadyVoted indicates the user already upvoted the quote.
	ErrorCodeAlreadyVoted = "ALREADY_VOTED"

	// ErrorCodeNotVoted indicates the user has no upvote to withdraw.
	ErrorCodeNotVoted = "NOT_VOTED"

	// ErrorCodeIntegrity indicates a transaction was rolled back to keep
	// quotes and upvotes consistent.
	ErrorCodeIntegrity = "INTEGRITY_VIOLATION"

	// ErrorCodePublishFailed indicates the leaderboard could not be published.
	ErrorCodePublishFailed = "PUBLISH_FAILED"

	// ErrorCodeValidation indicates request validation failed.
	ErrorCodeValidation = "VALIDATION_ERROR"

	// ErrorCodeForbidden indicates the operation is not permitted.
	ErrorCodeForbidden = "FORBIDDEN"

	// ErrorCodeUnauthorized indicates authentication is required.
	ErrorCodeUnauthorized = "UNAUTHORIZED"

	// ErrorCodeUnavailable indicates a dependency is unavailable.
	ErrorCodeUnavailable = "SERVICE_UNAVAILABLE"

	// ErrorCodeInternal indicates an internal server error.
	ErrorCodeInternal = "INTERNAL_ERROR"

	// ErrorCodeTimeout indicates the request timed out.
	ErrorCodeTimeout = "TIMEOUT"

	// ErrorCodeBadRequest indicates the request was malformed.
	ErrorCodeBadRequest = "BAD_REQUEST"
)

// NewErrorResponse creates a new error response with the given code and message.
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorResponseWithDetails creates an error response with additional details.
func NewErrorResponseWithDetails(code, message string, details map[string]string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// WithTraceID adds a trace ID to the error response.
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

// HTTPStatusFromCode maps error codes to HTTP status codes.
func HTTPStatusFromCode(code string) int {
	switch code {
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeConflict, ErrorCodeDuplicateName, ErrorCodeAlreadyVoted, ErrorCodeNotVoted:
		return http.StatusConflict
	case ErrorCodeValidation, ErrorCodeBadRequest:
		return http.StatusBadRequest
	case ErrorCodeForbidden:
		return http.StatusForbidden
	case ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrorCodeUnavailable, ErrorCodePublishFailed:
		return http.StatusServiceUnavailable
	case ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

const (
	contextKeyTraceID = "trace_id"
	headerRequestID   = "X-Request-ID"
)

// MapDomainError maps a domain error to an HTTP status code and error response.
// Unknown and integrity errors are mapped to 500 with a generic message.
func MapDomainError(err error) (int, *ErrorResponse) {
	if err == nil {
		return http.StatusOK, nil
	}

	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound, NewErrorResponse(ErrorCodeNotFound, err.Error())

	case domain.IsConflict(err):
		return http.StatusConflict, NewErrorResponse(conflictCode(err), err.Error())

	case domain.IsValidation(err):
		resp := NewErrorResponse(ErrorCodeValidation, err.Error())
		// Extract field details if available
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) && validationErr.Field != "" {
			resp.Error.Details = map[string]string{
				validationErr.Field: validationErr.Message,
			}
		}

		return http.StatusBadRequest, resp

	case errors.Is(err, domain.ErrExternalPublish):
		return http.StatusServiceUnavailable, NewErrorResponse(ErrorCodePublishFailed, err.Error())

	case domain.IsUnavailable(err):
		return http.StatusServiceUnavailable, NewErrorResponse(ErrorCodeUnavailable, err.Error())

	case domain.IsIntegrity(err):
		return http.StatusInternalServerError, NewErrorResponse(
			ErrorCodeIntegrity,
			"the change was rolled back, nothing was modified",
		)

	default:
		// Unknown errors get a generic message to avoid leaking internals
		return http.StatusInternalServerError, NewErrorResponse(ErrorCodeInternal, "an internal error occurred")
	}
}

func conflictCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrDuplicateKey):
		return ErrorCodeDuplicateName
	case errors.Is(err, domain.ErrAlreadyVoted):
		return ErrorCodeAlreadyVoted
	case errors.Is(err, domain.ErrNotVoted):
		return ErrorCodeNotVoted
	default:
		return ErrorCodeConflict
	}
}

// GetTraceID returns the ID used to correlate an error response with logs:
// the OpenTelemetry trace ID when tracing is active, else a trace_id set on
// the gin context, else the request ID header.
func GetTraceID(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return ""
	}

	if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}

	if v, ok := c.Get(contextKeyTraceID); ok {
		id, _ := v.(string)

		return id
	}

	return c.GetHeader(headerRequestID)
}

// HandleError writes the error response for err, including the trace ID.
// Server-side failures are logged with full details.
func HandleError(c *gin.Context, err error) {
	status, errResp := MapDomainError(err)
	errResp.TraceID = GetTraceID(c)

	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).ErrorContext(c.Request.Context(), "request failed",
			slog.Any("error", err),
			slog.String("trace_id", errResp.TraceID),
		)
	}

	c.JSON(status, errResp)
}

// HandleErrorCode writes an error response with a specific error code.
// Use this for adapter-level errors (e.g., malformed input) that
// don't originate from domain errors.
func HandleErrorCode(c *gin.Context, code, message string) {
	c.JSON(HTTPStatusFromCode(code), NewErrorResponse(code, message).WithTraceID(GetTraceID(c)))
}

// HandleValidationErrors writes a 400 response with field-level validation errors.
func HandleValidationErrors(c *gin.Context, fieldErrors map[string]string) {
	errResp := NewErrorResponseWithDetails(ErrorCodeValidation, "request validation failed", fieldErrors)

	c.JSON(http.StatusBadRequest, errResp.WithTraceID(GetTraceID(c)))
}

// HandleBindError writes the response for a failed BindAndValidate call.
func HandleBindError(c *gin.Context, err error) {
	if domain.IsValidation(err) {
		HandleError(c, err)

		return
	}

	if fieldErrors := ValidationErrors(err); len(fieldErrors) > 0 {
		HandleValidationErrors(c, fieldErrors)

		return
	}

	if errors.Is(err, ErrValidation) {
		HandleErrorCode(c, ErrorCodeValidation, err.Error())

		return
	}

	HandleErrorCode(c, ErrorCodeBadRequest, err.Error())
}
