package response

import (
	"errors"
	"net/http"
)

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error Codes
type ErrCode string

var (
	FAILED_REQUEST     ErrCode = "REQUEST_FAILED"
	BAD_REQUEST        ErrCode = "FAILED_TO_DECODE"
	NOT_FOUND          ErrCode = "NOT_FOUND"
	LOCKED             ErrCode = "LOCKED"
	CONFLICT           ErrCode = "CONFLICT"
	SLOT_NOT_AVAILABLE ErrCode = "SLOT_NOT_AVAILABLE"
	INVALID_TRANSITION ErrCode = "INVALID_TRANSITION"
	EMPTY_REASON       ErrCode = "EMPTY_REASON"
)

var (
	ErrBadRequest        = errors.New("bad request")
	ErrNotFound          = errors.New("resource not found")
	ErrLocked            = errors.New("resource is locked")
	ErrSlotUnavailable   = errors.New("slot is not available")
	ErrSlotHeld          = errors.New("slot is held by an active appointment")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrEmptyReason       = errors.New("cancellation reason is required")
)

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}

// FromError maps a service error to its HTTP status and error body. Errors
// the service does not classify become a 500 carrying fallback as message.
func FromError(err error, fallback string) (int, Response) {
	switch {
	case errors.Is(err, ErrEmptyReason):
		return http.StatusBadRequest, Error(string(EMPTY_REASON), "cancellation reason is required")
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, Error(string(BAD_REQUEST), err.Error())
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, Error(string(NOT_FOUND), "resource not found")
	case errors.Is(err, ErrLocked):
		return http.StatusLocked, Error(string(LOCKED), "resource is locked")
	case errors.Is(err, ErrSlotUnavailable):
		return http.StatusConflict, Error(string(SLOT_NOT_AVAILABLE), "slot is not available")
	case errors.Is(err, ErrSlotHeld):
		return http.StatusConflict, Error(string(CONFLICT), "slot is held by an active appointment")
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict, Error(string(INVALID_TRANSITION), err.Error())
	default:
		return http.StatusInternalServerError, Error(string(FAILED_REQUEST), fallback)
	}
}
