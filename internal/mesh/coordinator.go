// Package mesh turns a chat voice channel into a full mesh of peer-to-peer
// audio links. The Coordinator owns the channel membership state machine and
// serializes every mutation, whether it comes from the UI, the relay event
// stream or the speaking sampler, through one mutex.
package mesh

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meshvoice/internal/core"
	"github.com/dkeye/meshvoice/internal/domain"
)

// Options tune speaking detection. Zero values fall back to defaults.
type Options struct {
	SpeakThreshold float64
	SpeakInterval  time.Duration
	SpeakGrace     time.Duration
}

func (o *Options) fill() {
	if o.SpeakThreshold == 0 {
		o.SpeakThreshold = 12.0
	}
	if o.SpeakInterval == 0 {
		o.SpeakInterval = 100 * time.Millisecond
	}
	if o.SpeakGrace == 0 {
		o.SpeakGrace = 300 * time.Millisecond
	}
}

type Coordinator struct {
	self     domain.UserID
	username string

	relay    core.RelayClient
	device   core.CaptureDevice
	links    core.LinkFactory
	sink     core.AudioSink
	registry *Registry
	opts     Options

	// appCtx bounds every link's lifetime; shut it down and all links close.
	appCtx context.Context

	mu            sync.Mutex
	state         ChannelState
	channel       domain.ChannelID
	capture       core.CaptureHandle
	mutePref      bool
	participants  map[domain.UserID]domain.Participant
	speaking      map[domain.UserID]struct{}
	detector      *Detector
	localSpeaking bool
}

func NewCoordinator(
	ctx context.Context,
	self domain.UserID,
	username string,
	relay core.RelayClient,
	device core.CaptureDevice,
	links core.LinkFactory,
	sink core.AudioSink,
	registry *Registry,
	opts Options,
) *Coordinator {
	opts.fill()
	c := &Coordinator{
		self:         self,
		username:     username,
		relay:        relay,
		device:       device,
		links:        links,
		sink:         sink,
		registry:     registry,
		opts:         opts,
		appCtx:       ctx,
		participants: make(map[domain.UserID]domain.Participant),
		speaking:     make(map[domain.UserID]struct{}),
	}
	registry.OnNegotiationExpired(c.negotiationExpired)
	return c
}

// Join places the local user into channel. Being in another channel first
// runs the full leave sequence; a user is in at most one voice channel. A
// capture failure aborts the whole join with no partial state: nothing is
// announced and no participant is recorded.
func (c *Coordinator) Join(ctx context.Context, channel domain.ChannelID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateJoined && c.channel == channel {
		return nil
	}
	if c.state == StateJoined || c.state == StateJoining {
		c.leaveLocked()
	}

	c.state = StateJoining
	c.channel = channel

	handle, err := c.device.Acquire(ctx)
	if err != nil {
		c.state = StateNotJoined
		c.channel = ""
		log.Error().Err(err).Str("module", "mesh").Str("channel", string(channel)).Msg("join aborted: capture failed")
		return err
	}
	c.capture = handle
	handle.SetMuted(c.mutePref)

	// Fresh membership: the destroyed set from the previous one is void.
	c.registry.Reset()

	c.relay.AnnounceJoin(channel, c.mutePref)
	c.state = StateJoined
	c.participants = map[domain.UserID]domain.Participant{
		c.self: {UserID: c.self, Username: c.username, Muted: c.mutePref},
	}
	c.speaking = make(map[domain.UserID]struct{})
	c.localSpeaking = false

	if !c.mutePref {
		c.startDetectorLocked()
	}

	// Seed the participant set; also reconciles any partial state left by
	// races around the join.
	c.relay.RequestParticipants(channel)

	log.Info().Str("module", "mesh").Str("channel", string(channel)).Msg("joined")
	return nil
}

// Leave is a no-op unless joined. Idempotent and safe to call concurrently
// with Join; both serialize on the coordinator mutex.
func (c *Coordinator) Leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaveLocked()
}

func (c *Coordinator) leaveLocked() {
	if c.state != StateJoined && c.state != StateJoining {
		return
	}
	channel := c.channel
	c.state = StateLeaving

	// Best effort; the relay may be down and that is fine.
	c.relay.AnnounceLeave(channel)

	c.stopDetectorLocked()
	c.registry.Reset()
	c.sink.DetachAll()
	if c.capture != nil {
		c.capture.Release()
		c.capture = nil
	}
	c.participants = make(map[domain.UserID]domain.Participant)
	c.speaking = make(map[domain.UserID]struct{})
	c.localSpeaking = false
	c.channel = ""
	c.state = StateNotJoined

	log.Info().Str("module", "mesh").Str("channel", string(channel)).Msg("left")
}

// ToggleMute flips the local mute preference and returns the new state. The
// preference is sticky across memberships: toggled while not joined, nothing
// is announced, and the next Join applies it to the capture handle and
// carries it in the join announcement. While joined it silences the capture
// track in place and announces the change; no peer connection is touched.
func (c *Coordinator) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.mutePref = !c.mutePref
	if c.state != StateJoined {
		return c.mutePref
	}

	if c.capture != nil {
		c.capture.SetMuted(c.mutePref)
	}
	if p, ok := c.participants[c.self]; ok {
		p.Muted = c.mutePref
		c.participants[c.self] = p
	}
	if c.mutePref {
		c.stopDetectorLocked()
	} else {
		c.startDetectorLocked()
	}
	c.relay.AnnounceMute(c.channel, c.mutePref)
	return c.mutePref
}

func (c *Coordinator) startDetectorLocked() {
	if c.detector != nil || c.capture == nil {
		return
	}
	handle := c.capture
	c.detector = NewDetector(
		c.opts.SpeakThreshold,
		c.opts.SpeakInterval,
		c.opts.SpeakGrace,
		handle.Spectrum,
		c.localSpeakingChanged,
	)
	c.detector.Start()
}

// stopDetectorLocked halts sampling and retracts a live speaking state: a
// muted user never reports as speaking.
func (c *Coordinator) stopDetectorLocked() {
	if c.detector != nil {
		c.detector.Stop()
		c.detector = nil
	}
	if c.localSpeaking {
		c.localSpeaking = false
		delete(c.speaking, c.self)
		if c.state == StateJoined {
			c.relay.AnnounceSpeaking(c.channel, false)
		}
	}
}

// localSpeakingChanged runs on the detector goroutine.
func (c *Coordinator) localSpeakingChanged(speaking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateJoined || c.capture == nil || c.capture.Muted() {
		return
	}
	c.localSpeaking = speaking
	if speaking {
		c.speaking[c.self] = struct{}{}
	} else {
		delete(c.speaking, c.self)
	}
	c.relay.AnnounceSpeaking(c.channel, speaking)
}

// negotiationExpired runs off the registry's deadline timer.
func (c *Coordinator) negotiationExpired(remote domain.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateJoined {
		return
	}
	log.Warn().Str("module", "mesh").Str("remote", string(remote)).Msg("negotiation deadline exceeded")
	c.destroyPeerLocked(remote)
}

// --- read-only observable state, for the UI layer and diagnostics ---

func (c *Coordinator) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) ChannelID() domain.ChannelID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

func (c *Coordinator) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutePref
}

func (c *Coordinator) Participants() []domain.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Participant, 0, len(c.participants))
	for _, p := range c.participants {
		out = append(out, p)
	}
	return out
}

func (c *Coordinator) Speaking() []domain.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.UserID, 0, len(c.speaking))
	for id := range c.speaking {
		out = append(out, id)
	}
	return out
}

func (c *Coordinator) PeerStates() []PeerStatus {
	return c.registry.Statuses()
}
