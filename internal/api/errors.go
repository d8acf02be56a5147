package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Custom error types for better error handling and categorization

// ValidationError represents errors from invalid input
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) ErrorCode() string { return "VALIDATION_ERROR" }

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// UnauthorizedError represents a missing or invalid bearer credential
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unauthorized: %s", e.Reason)
	}
	return "unauthorized"
}

func (e *UnauthorizedError) ErrorCode() string { return "UNAUTHORIZED" }

func NewUnauthorizedError(reason string) *UnauthorizedError {
	return &UnauthorizedError{Reason: reason}
}

// ForbiddenError represents a caller that is not the resource owner
type ForbiddenError struct {
	Resource string
}

func (e *ForbiddenError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("forbidden: not the owner of %s", e.Resource)
	}
	return "forbidden"
}

func (e *ForbiddenError) ErrorCode() string { return "FORBIDDEN" }

func NewForbiddenError(resource string) *ForbiddenError {
	return &ForbiddenError{Resource: resource}
}

// NotFoundError represents errors when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) ErrorCode() string { return "NOT_FOUND" }

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError represents a unique constraint violation
type ConflictError struct {
	Resource string
	Field    string
}

func (e *ConflictError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s already exists for %s", e.Resource, e.Field)
	}
	return fmt.Sprintf("%s conflict", e.Resource)
}

func (e *ConflictError) ErrorCode() string { return "CONFLICT" }

func NewConflictError(resource, field string) *ConflictError {
	return &ConflictError{Resource: resource, Field: field}
}

// BadRequestError represents a semantic error in an otherwise well-formed request
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string { return e.Message }

func (e *BadRequestError) ErrorCode() string { return "BAD_REQUEST" }

func NewBadRequestError(message string) *BadRequestError {
	return &BadRequestError{Message: message}
}

// DatabaseError represents a constraint or driver failure not classifiable above
type DatabaseError struct {
	Operation string
	Cause     error
}

func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("database error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("database error during %s", e.Operation)
}

func (e *DatabaseError) Unwrap() error { return e.Cause }

func (e *DatabaseError) ErrorCode() string { return "DATABASE_ERROR" }

// NewDatabaseError creates a new database error
func NewDatabaseError(operation string, cause error) *DatabaseError {
	return &DatabaseError{Operation: operation, Cause: cause}
}

// ServiceUnavailableError represents an unreachable upstream dependency
type ServiceUnavailableError struct {
	Service string
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("%s is unavailable", e.Service)
}

func (e *ServiceUnavailableError) ErrorCode() string { return "SERVICE_UNAVAILABLE" }

func NewServiceUnavailableError(service string) *ServiceUnavailableError {
	return &ServiceUnavailableError{Service: service}
}

// RateLimitError represents a request rejected by the rate limiter
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

func (e *RateLimitError) ErrorCode() string { return "RATE_LIMIT_EXCEEDED" }

func NewRateLimitError(retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{RetryAfter: retryAfter}
}

// PayloadTooLargeError represents errors when request payload exceeds size limit
type PayloadTooLargeError struct {
	MaxSize    int64
	ActualSize int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload too large: maximum size is %d bytes, got %d bytes", e.MaxSize, e.ActualSize)
}

func (e *PayloadTooLargeError) ErrorCode() string { return "VALIDATION_ERROR" }

// NewPayloadTooLargeError creates a new payload too large error
func NewPayloadTooLargeError(maxSize, actualSize int64) *PayloadTooLargeError {
	return &PayloadTooLargeError{MaxSize: maxSize, ActualSize: actualSize}
}

// IsValidationError checks if an error is a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsUnauthorizedError checks if an error is an UnauthorizedError
func IsUnauthorizedError(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
}

// IsForbiddenError checks if an error is a ForbiddenError
func IsForbiddenError(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

// IsNotFoundError checks if an error is a NotFoundError
func IsNotFoundError(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsConflictError checks if an error is a ConflictError
func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsBadRequestError checks if an error is a BadRequestError
func IsBadRequestError(err error) bool {
	var be *BadRequestError
	return errors.As(err, &be)
}

// IsDatabaseError checks if an error is a DatabaseError
func IsDatabaseError(err error) bool {
	var de *DatabaseError
	return errors.As(err, &de)
}

// IsServiceUnavailableError checks if an error is a ServiceUnavailableError
func IsServiceUnavailableError(err error) bool {
	var sue *ServiceUnavailableError
	return errors.As(err, &sue)
}

// IsRateLimitError checks if an error is a RateLimitError
func IsRateLimitError(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// IsPayloadTooLargeError checks if an error is a PayloadTooLargeError
func IsPayloadTooLargeError(err error) bool {
	var ptle *PayloadTooLargeError
	return errors.As(err, &ptle)
}

// HTTPStatusFromError returns the appropriate HTTP status code for an error
func HTTPStatusFromError(err error) int {
	switch {
	case IsValidationError(err), IsPayloadTooLargeError(err):
		return http.StatusUnprocessableEntity
	case IsUnauthorizedError(err):
		return http.StatusUnauthorized
	case IsForbiddenError(err):
		return http.StatusForbidden
	case IsNotFoundError(err):
		return http.StatusNotFound
	case IsConflictError(err):
		return http.StatusConflict
	case IsBadRequestError(err):
		return http.StatusBadRequest
	case IsServiceUnavailableError(err):
		return http.StatusServiceUnavailable
	case IsRateLimitError(err):
		return http.StatusTooManyRequests
	case IsDatabaseError(err):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// errorCoder is implemented by every typed error above; an error without it
// falls back to DATABASE_ERROR, matching §7's catch-all.
type errorCoder interface {
	ErrorCode() string
}

func errorCodeFromError(err error) string {
	var ec errorCoder
	if errors.As(err, &ec) {
		return ec.ErrorCode()
	}
	return "DATABASE_ERROR"
}

// ErrorResponse is the §6 error envelope.
type ErrorResponse struct {
	Detail        string         `json:"detail"`
	ErrorCode     string         `json:"error_code"`
	CorrelationID string         `json:"correlation_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Details       map[string]any `json:"details,omitempty"`
}

type correlationIDKey struct{}

// WithCorrelationID attaches a correlation ID to a request context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext reads the correlation ID attached by the
// correlation-ID middleware, generating a fresh one if the context carries
// none (e.g. in tests that call a handler directly).
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// WriteErrorFromError writes the §6 error envelope for a typed error.
func WriteErrorFromError(w http.ResponseWriter, r *http.Request, err error) {
	WriteErrorDetails(w, r, err, nil)
}

// WriteErrorDetails writes the §6 error envelope including a details map.
func WriteErrorDetails(w http.ResponseWriter, r *http.Request, err error, details map[string]any) {
	statusCode := HTTPStatusFromError(err)
	resp := ErrorResponse{
		Detail:        err.Error(),
		ErrorCode:     errorCodeFromError(err),
		CorrelationID: CorrelationIDFromContext(r.Context()),
		Timestamp:     time.Now().UTC(),
		Details:       details,
	}
	var rle *RateLimitError
	if errors.As(err, &rle) {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rle.RetryAfter.Seconds())))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}
