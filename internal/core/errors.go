package core

import (
	"errors"
	"fmt"

	"github.com/dkeye/meshvoice/internal/domain"
)

var (
	// ErrCaptureUnavailable means no usable capture device exists.
	ErrCaptureUnavailable = errors.New("capture device unavailable")
	// ErrCapturePermission means the device exists but access was denied.
	ErrCapturePermission = errors.New("capture permission denied")
	// ErrCaptureBusy means a handle is already held for this manager.
	ErrCaptureBusy = errors.New("capture already acquired")

	// ErrPeerExists guards the at-most-one-live-connection-per-user invariant.
	ErrPeerExists = errors.New("live peer connection already exists")
)

// CaptureError is fatal to a join attempt: the caller must surface it and
// must not proceed to announce membership.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string { return fmt.Sprintf("capture: %v", e.Err) }
func (e *CaptureError) Unwrap() error { return e.Err }

// NegotiationError is isolated to one peer; it never aborts the channel
// membership.
type NegotiationError struct {
	Remote domain.UserID
	Err    error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("negotiation with %s: %v", e.Remote, e.Err)
}
func (e *NegotiationError) Unwrap() error { return e.Err }
