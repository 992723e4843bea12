package shared

import (
	"errors"
	"fmt"
)

// RequestError is used when we want a specific error message and StatusCode.
// Handlers return the exact message inside Err to the user, so anything that
// should stay out of the response belongs in a wrapping error for the logs
// instead.
type RequestError struct {
	StatusCode int
	Err        error
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("status %d: err %v", r.StatusCode, r.Err)
}

func (r *RequestError) Unwrap() error {
	return r.Err
}

var (
	ErrMissingAuth   = &RequestError{Err: errors.New("missing authorization header"), StatusCode: 401}
	ErrInvalidFormat = &RequestError{Err: errors.New("invalid authentication format"), StatusCode: 401}
	ErrInvalidKeyLen = &RequestError{Err: errors.New("invalid API key length"), StatusCode: 401}
	ErrUnauthorized  = &RequestError{Err: errors.New("unauthorized"), StatusCode: 401}

	ErrNoImage          = &RequestError{Err: errors.New("no image provided, use the 'upload' or 'camera' form field"), StatusCode: 400}
	ErrUnsupportedImage = &RequestError{Err: errors.New("invalid image format, supported: JPEG, PNG, GIF"), StatusCode: 400}
	ErrInvalidForm      = &RequestError{Err: errors.New("failed to parse form"), StatusCode: 400}

	ErrUnsupportedMediaType = &RequestError{Err: errors.New("unsupported content type, send a multipart form or an image/* or application/octet-stream body"), StatusCode: 415}

	ErrRateLimited         = &RequestError{Err: errors.New("too many requests, slow down"), StatusCode: 429}
	ErrInternalServerError = &RequestError{Err: errors.New("internal server error"), StatusCode: 500}
)

// ErrorResponse is the JSON body sent for every non-2xx API response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}
