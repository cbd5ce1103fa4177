package capture

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

var ErrReleased = errors.New("capture handle released")

// Handle is the single owner of a live capture. Release stops the feed loop
// and the source; calling it twice is a no-op.
type Handle struct {
	track *webrtc.TrackLocalStaticSample
	src   Source

	muted atomic.Bool

	mu      sync.Mutex
	lastPCM []int16

	stop chan struct{}
	once sync.Once
	done atomic.Bool
}

func newHandle(track *webrtc.TrackLocalStaticSample, src Source) *Handle {
	return &Handle{track: track, src: src, stop: make(chan struct{})}
}

// feed moves frames from the source into the local track. Mute silences the
// payload in place; the track stays attached so no peer renegotiates.
func (h *Handle) feed() {
	for {
		select {
		case <-h.stop:
			return
		default:
		}
		frame, err := h.src.ReadFrame()
		if err != nil {
			if !h.done.Load() {
				log.Error().Err(err).Str("module", "capture").Msg("source read error, stopping feed")
			}
			return
		}
		if h.muted.Load() {
			for i := range frame.Data {
				frame.Data[i] = 0
			}
			for i := range frame.PCM {
				frame.PCM[i] = 0
			}
		}
		h.mu.Lock()
		h.lastPCM = frame.PCM
		h.mu.Unlock()
		if err := h.track.WriteSample(media.Sample{Data: frame.Data, Duration: FrameDuration}); err != nil {
			log.Error().Err(err).Str("module", "capture").Msg("write sample")
		}
	}
}

func (h *Handle) Track() webrtc.TrackLocal { return h.track }

func (h *Handle) SetMuted(muted bool) { h.muted.Store(muted) }
func (h *Handle) Muted() bool         { return h.muted.Load() }

// Spectrum returns frequency-bin magnitudes of the most recent captured
// window. A muted handle reports silence.
func (h *Handle) Spectrum() ([]float64, error) {
	if h.done.Load() {
		return nil, ErrReleased
	}
	h.mu.Lock()
	pcm := h.lastPCM
	h.mu.Unlock()
	return binMagnitudes(pcm, SpectrumBins), nil
}

func (h *Handle) Release() {
	h.once.Do(func() {
		h.done.Store(true)
		close(h.stop)
		if err := h.src.Close(); err != nil {
			log.Error().Err(err).Str("module", "capture").Msg("source close")
		}
		log.Info().Str("module", "capture").Msg("capture released")
	})
}

func (h *Handle) Released() bool { return h.done.Load() }
