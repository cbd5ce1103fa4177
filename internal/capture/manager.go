// Package capture owns the local audio device: at most one live handle,
// local-only mute, and the spectrum feed for speaking detection.
package capture

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meshvoice/internal/core"
)

// OpenFunc opens the platform audio source. The codec of Frame.Data is
// whatever the source and the remote playback agree on; this package only
// moves frames.
type OpenFunc func(ctx context.Context) (Source, error)

type Manager struct {
	mu   sync.Mutex
	open OpenFunc
	held *Handle
}

func NewManager(open OpenFunc) *Manager {
	return &Manager{open: open}
}

// Acquire opens the device and starts feeding the local track. Failure means
// the whole join must abort; no partial state is left behind.
func (m *Manager) Acquire(ctx context.Context) (core.CaptureHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held != nil && !m.held.Released() {
		return nil, &core.CaptureError{Err: core.ErrCaptureBusy}
	}

	src, err := m.open(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "capture").Msg("device open failed")
		return nil, &core.CaptureError{Err: err}
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: SampleRate, Channels: 1},
		"audio",
		"mesh-"+uuid.NewString(),
	)
	if err != nil {
		_ = src.Close()
		return nil, &core.CaptureError{Err: err}
	}

	h := newHandle(track, src)
	go h.feed()
	m.held = h
	log.Info().Str("module", "capture").Str("stream", track.StreamID()).Msg("capture acquired")
	return h, nil
}
