package core

import "github.com/dkeye/meshvoice/internal/domain"

// AudioSink owns playback of received remote audio streams, keyed by the
// sending user.
type AudioSink interface {
	// Attach starts playing a remote track; an existing attachment for the
	// same user is replaced.
	Attach(user domain.UserID, track RemoteTrack)
	// Detach stops and releases playback for user. Safe when nothing is
	// attached.
	Detach(user domain.UserID)
	DetachAll()
	Attached() []domain.UserID
}
