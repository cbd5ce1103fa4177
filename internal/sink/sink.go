// Package sink plays received remote audio streams, one attachment per
// remote user. It replaces the ambient keyed-element bookkeeping of the
// original UI with an explicit attach/detach lifecycle.
package sink

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meshvoice/internal/core"
	"github.com/dkeye/meshvoice/internal/domain"
)

// Playback is the platform audio output. Frames arrive in whatever codec the
// capture side produced; decoding is the playback backend's business.
type Playback interface {
	Write(user domain.UserID, frame []byte) error
	Stop(user domain.UserID)
}

// Discard drops all audio. Useful headless and in tests.
type Discard struct{}

func (Discard) Write(domain.UserID, []byte) error { return nil }
func (Discard) Stop(domain.UserID)                {}

type attachment struct {
	trackID string
	cancel  context.CancelFunc
}

type Sink struct {
	out Playback

	mu      sync.RWMutex
	entries map[domain.UserID]*attachment
}

func New(out Playback) *Sink {
	return &Sink{out: out, entries: make(map[domain.UserID]*attachment)}
}

// Attach starts forwarding a remote track to playback. An existing
// attachment for the same user is replaced.
func (s *Sink) Attach(user domain.UserID, track core.RemoteTrack) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if old, ok := s.entries[user]; ok {
		old.cancel()
	}
	s.entries[user] = &attachment{trackID: track.ID(), cancel: cancel}
	s.mu.Unlock()

	logger := log.With().
		Str("module", "sink").
		Str("user", string(user)).
		Str("track_id", track.ID()).
		Logger()
	logger.Info().Msg("attached")

	go s.pump(ctx, user, track, &logger)
}

// pump reads RTP from the remote track and forwards payloads to playback
// until the track dies or the attachment is detached.
func (s *Sink) pump(ctx context.Context, user domain.UserID, track core.RemoteTrack, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("pump ctx done")
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("track ended")
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		if err := s.out.Write(user, pkt.Payload); err != nil {
			logger.Error().Err(err).Msg("playback write error, stopping pump")
			return
		}
	}
}

// Detach stops playback for user. Safe to call when nothing is attached.
func (s *Sink) Detach(user domain.UserID) {
	s.mu.Lock()
	a, ok := s.entries[user]
	if ok {
		delete(s.entries, user)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	a.cancel()
	s.out.Stop(user)
	log.Info().Str("module", "sink").Str("user", string(user)).Msg("detached")
}

func (s *Sink) DetachAll() {
	s.mu.Lock()
	entries := s.entries
	s.entries = make(map[domain.UserID]*attachment)
	s.mu.Unlock()
	for user, a := range entries {
		a.cancel()
		s.out.Stop(user)
	}
	if len(entries) > 0 {
		log.Info().Str("module", "sink").Int("count", len(entries)).Msg("detached all")
	}
}

func (s *Sink) Attached() []domain.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserID, 0, len(s.entries))
	for user := range s.entries {
		out = append(out, user)
	}
	return out
}
