package core

import (
	"context"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/meshvoice/internal/domain"
)

// RemoteTrack is the read side of an incoming media track.
// *webrtc.TrackRemote satisfies it.
type RemoteTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

// MediaLink is one negotiated peer-to-peer audio link.
// Owned exclusively by the peer registry; nobody else holds a reference.
type MediaLink interface {
	// Start configures internal callbacks and binds the link lifetime to ctx.
	Start(ctx context.Context) error
	// AddLocalTrack attaches the local capture track before negotiating.
	AddLocalTrack(track webrtc.TrackLocal) error
	// CreateOffer produces and installs the local offer (initiator side).
	CreateOffer() (webrtc.SessionDescription, error)
	// ApplyOffer installs a remote offer and returns the local answer
	// (responder side).
	ApplyOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	// ApplyAnswer installs the remote answer (initiator side).
	ApplyAnswer(answer webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate; candidates arriving
	// before the remote description are buffered.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback invoked when the remote audio track arrives.
	OnTrack(func(RemoteTrack))
	// OnClosed sets a callback fired at most once when the underlying
	// connection fails or closes on its own.
	OnClosed(func())
	// Close stops all underlying resources. Idempotent.
	Close()
	IsClosed() bool
}

// LinkFactory builds a fresh MediaLink for one remote participant.
type LinkFactory interface {
	NewLink(remote domain.UserID) (MediaLink, error)
}

// CaptureHandle wraps the local audio stream. Exactly one owner: the active
// channel membership.
type CaptureHandle interface {
	Track() webrtc.TrackLocal
	// SetMuted flips the enabled flag; the track stays attached, just
	// silenced. No renegotiation happens.
	SetMuted(muted bool)
	Muted() bool
	// Spectrum returns current frequency-bin magnitudes of the captured
	// signal, for speaking detection. Errors once the handle is released.
	Spectrum() ([]float64, error)
	// Release stops the underlying source. Idempotent.
	Release()
}

// CaptureDevice acquires the local audio capture device.
type CaptureDevice interface {
	Acquire(ctx context.Context) (CaptureHandle, error)
}
