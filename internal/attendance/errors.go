package attendance

import (
	"errors"
	"fmt"
)

// ===== Error model (alerts/community と同型) =====
type Code string

const (
	CodeInvalidArgument     Code = "INVALID_ARGUMENT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeConflict            Code = "CONFLICT"
	CodeNoActiveSession     Code = "NO_ACTIVE_SESSION"
	CodeLocationUnavailable Code = "LOCATION_UNAVAILABLE"
	CodePersistenceFailure  Code = "PERSISTENCE_FAILURE"
	CodeInternal            Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func ErrNoActiveSession() *APIError {
	return &APIError{Code: CodeNoActiveSession, Message: "no active check-in for today"}
}

func ErrLocationUnavailable(msg string) *APIError {
	return &APIError{Code: CodeLocationUnavailable, Message: msg}
}

func ErrPersistence(msg string) *APIError {
	return &APIError{Code: CodePersistenceFailure, Message: msg}
}

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict, CodeNoActiveSession:
			return 409
		case CodeLocationUnavailable:
			return 422
		case CodePersistenceFailure:
			return 503
		default:
			return 500
		}
	}
	return 500
}
