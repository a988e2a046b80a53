package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	CodeNotFound        = "NOT_FOUND"
	CodeAlreadyBooked   = "ALREADY_BOOKED"
	CodeLockedByOther   = "LOCKED_BY_OTHER"
	CodeVersionConflict = "VERSION_CONFLICT"
	CodeLockNotFound    = "LOCK_NOT_FOUND"
	CodeLockExpired     = "LOCK_EXPIRED"
	CodeForbidden       = "FORBIDDEN"
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeInternal        = "INTERNAL_ERROR"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

func (e *AppError) ToJSON() []byte {
	response := ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
	data, _ := json.Marshal(response)
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFoundWithID(resource, id string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func AlreadyBooked(slotID string) *AppError {
	return &AppError{
		Code:       CodeAlreadyBooked,
		Message:    "Slot is already booked",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"slot_id": slotID,
		},
	}
}

func LockedByOther(slotID string) *AppError {
	return &AppError{
		Code:       CodeLockedByOther,
		Message:    "Slot is currently locked by another owner",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"slot_id": slotID,
		},
	}
}

func VersionConflict(expected, current uint64) *AppError {
	return &AppError{
		Code:       CodeVersionConflict,
		Message:    "Store version has moved past the expected version",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"expected_version": expected,
			"current_version":  current,
		},
	}
}

func LockNotFound() *AppError {
	return &AppError{
		Code:       CodeLockNotFound,
		Message:    "Lease not found",
		HTTPStatus: http.StatusNotFound,
	}
}

func LockExpired(leaseID string) *AppError {
	return &AppError{
		Code:       CodeLockExpired,
		Message:    "Lease has expired",
		HTTPStatus: http.StatusGone,
		Details: map[string]any{
			"lease_id": leaseID,
		},
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

func Validation(message string, details map[string]any) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
