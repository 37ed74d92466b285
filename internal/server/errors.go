package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/boot-release/internal/db"
	"github.com/jonathan/boot-release/internal/pipeline"
)

// ErrSignature indicates the webhook payload signature did not verify
type ErrSignature struct {
	Cause error
}

func (e *ErrSignature) Error() string {
	return fmt.Sprintf("invalid webhook signature: %v", e.Cause)
}

func (e *ErrSignature) Unwrap() error {
	return e.Cause
}

// ErrInvalidPayload indicates the webhook body could not be parsed
type ErrInvalidPayload struct {
	Message string
	Cause   error
}

func (e *ErrInvalidPayload) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid payload: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid payload: %s", e.Message)
}

func (e *ErrInvalidPayload) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var sigErr *ErrSignature
	var payloadErr *ErrInvalidPayload
	switch {
	case errors.As(err, &sigErr):
		return http.StatusUnauthorized
	case errors.As(err, &payloadErr):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, db.ErrRunNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
