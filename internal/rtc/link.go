// Package rtc wraps pion PeerConnections as MediaLinks for the mesh.
package rtc

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meshvoice/internal/core"
	"github.com/dkeye/meshvoice/internal/domain"
)

// Factory builds links against a shared ICE server configuration.
type Factory struct {
	cfg webrtc.Configuration
}

func NewFactory(stunURLs []string) *Factory {
	return &Factory{cfg: webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: stunURLs}},
	}}
}

func (f *Factory) NewLink(remote domain.UserID) (core.MediaLink, error) {
	pc, err := webrtc.NewPeerConnection(f.cfg)
	if err != nil {
		return nil, err
	}
	return &Link{pc: pc, remote: remote}, nil
}

type Link struct {
	pc     *webrtc.PeerConnection
	remote domain.UserID

	onICE    func(webrtc.ICECandidateInit)
	onTrack  func(core.RemoteTrack)
	onClosed func()

	mu      sync.Mutex
	closed  bool
	pending []webrtc.ICECandidateInit

	closedOnce sync.Once
}

func (l *Link) Start(ctx context.Context) error {
	// Bind the link to the owner's lifetime: app shutdown closes whatever
	// the registry has not torn down yet.
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	l.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("remote", string(l.remote)).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateFailed {
			l.fireClosed()
		}
	})

	l.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("remote", string(l.remote)).Str("peer_state", s.String()).Msg("peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			l.fireClosed()
		}
	})

	l.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && l.onICE != nil {
			l.onICE(cand.ToJSON())
		}
	})

	l.pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		log.Info().
			Str("module", "rtc").
			Str("remote", string(l.remote)).
			Str("track_id", track.ID()).
			Msg("remote track")
		if l.onTrack != nil {
			l.onTrack(track)
		}
	})

	return nil
}

func (l *Link) AddLocalTrack(track webrtc.TrackLocal) error {
	_, err := l.pc.AddTrack(track)
	return err
}

func (l *Link) CreateOffer() (webrtc.SessionDescription, error) {
	offer, err := l.pc.CreateOffer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := l.pc.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	// Trickle ICE: candidates follow through OnICECandidate, no need to
	// wait for gathering.
	return offer, nil
}

func (l *Link) ApplyOffer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if err := l.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	l.flushPending()
	answer, err := l.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := l.pc.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (l *Link) ApplyAnswer(answer webrtc.SessionDescription) error {
	if err := l.pc.SetRemoteDescription(answer); err != nil {
		return err
	}
	l.flushPending()
	return nil
}

// AddICECandidate buffers candidates that race ahead of the remote
// description; the responder's trickle candidates can overtake its answer.
func (l *Link) AddICECandidate(ci webrtc.ICECandidateInit) error {
	l.mu.Lock()
	if l.pc.RemoteDescription() == nil {
		l.pending = append(l.pending, ci)
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()
	return l.pc.AddICECandidate(ci)
}

func (l *Link) flushPending() {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()
	for _, ci := range pending {
		if err := l.pc.AddICECandidate(ci); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("remote", string(l.remote)).Msg("flush candidate")
		}
	}
}

func (l *Link) OnICECandidate(fn func(webrtc.ICECandidateInit)) { l.onICE = fn }
func (l *Link) OnTrack(fn func(core.RemoteTrack))               { l.onTrack = fn }
func (l *Link) OnClosed(fn func())                              { l.onClosed = fn }

// fireClosed reports spontaneous closure (ICE failure, remote hangup).
// An explicit Close never fires it; the registry already knows.
func (l *Link) fireClosed() {
	l.mu.Lock()
	explicitly := l.closed
	l.mu.Unlock()
	if explicitly || l.onClosed == nil {
		return
	}
	l.closedOnce.Do(func() { go l.onClosed() })
}

func (l *Link) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	if err := l.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("remote", string(l.remote)).Msg("close error")
	} else {
		log.Info().Str("module", "rtc").Str("remote", string(l.remote)).Msg("closed")
	}
}

func (l *Link) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
