package classifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Reason says which stage of a prediction call failed.
type Reason string

const (
	ReasonEncode     Reason = "encode"
	ReasonNetwork    Reason = "network"
	ReasonHTTPStatus Reason = "http_status"
	ReasonParse      Reason = "parse"
)

// Sentinel errors for response shape problems.
var (
	ErrMissingPredictions = errors.New("classifier: response has no predictions field")
	ErrEmptyPredictions   = errors.New("classifier: response predictions are empty")
)

// Failure is returned for every unsuccessful prediction call.
type Failure struct {
	Reason Reason

	// StatusCode is only set for ReasonHTTPStatus.
	StatusCode int

	Err error
}

func (f *Failure) Error() string {
	if f.Reason == ReasonHTTPStatus {
		return fmt.Sprintf("classifier [%s]: remote responded %d %s", f.Reason, f.StatusCode, http.StatusText(f.StatusCode))
	}
	return fmt.Sprintf("classifier [%s]: %v", f.Reason, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Timeout reports whether the call ran out of time before a response came back.
func (f *Failure) Timeout() bool {
	if f.Reason != ReasonNetwork {
		return false
	}
	if errors.Is(f.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(f.Err, &ne) && ne.Timeout()
}

// Retryable reports whether repeating the same call could succeed. The
// client itself never retries; this is for callers deciding what to tell
// the user.
func (f *Failure) Retryable() bool {
	switch f.Reason {
	case ReasonNetwork:
		return !errors.Is(f.Err, context.Canceled)
	case ReasonHTTPStatus:
		return f.StatusCode == http.StatusTooManyRequests || f.StatusCode >= 500
	default:
		return false
	}
}

// ReasonOf extracts the failure reason from an error chain, or "" when err
// did not come from the classifier.
func ReasonOf(err error) Reason {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return ""
}
