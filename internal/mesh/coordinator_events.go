package mesh

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/meshvoice/internal/core"
	"github.com/dkeye/meshvoice/internal/domain"
)

// Inbound relay events. Every handler takes the coordinator mutex and
// filters on channel id first: events for a channel we are not joined to are
// ignored entirely.

func (c *Coordinator) joinedToLocked(channel domain.ChannelID) bool {
	return c.state == StateJoined && c.channel == channel
}

func (c *Coordinator) ParticipantJoined(channel domain.ChannelID, p domain.Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joinedToLocked(channel) {
		return
	}
	c.participants[p.UserID] = p
	if p.UserID == c.self || c.capture == nil {
		return
	}
	// Existing members initiate toward the newcomer; the newcomer answers.
	c.initiatePeerLocked(p.UserID)
}

func (c *Coordinator) ParticipantLeft(channel domain.ChannelID, user domain.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joinedToLocked(channel) {
		return
	}
	c.destroyPeerLocked(user)
	delete(c.participants, user)
	delete(c.speaking, user)
}

// ParticipantsSnapshot reconciles the participant set against the relay's
// authoritative list. Peers for members that vanished are torn down;
// connection setup still only happens through join/negotiation events.
func (c *Coordinator) ParticipantsSnapshot(channel domain.ChannelID, list []domain.Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joinedToLocked(channel) {
		return
	}
	seen := make(map[domain.UserID]struct{}, len(list)+1)
	seen[c.self] = struct{}{}
	for _, p := range list {
		seen[p.UserID] = struct{}{}
		c.participants[p.UserID] = p
	}
	for id := range c.participants {
		if _, ok := seen[id]; ok {
			continue
		}
		c.destroyPeerLocked(id)
		delete(c.participants, id)
		delete(c.speaking, id)
	}
}

func (c *Coordinator) NegotiationReceived(channel domain.ChannelID, from domain.UserID, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joinedToLocked(channel) {
		return
	}
	if c.registry.IsDestroyed(from) {
		// Expected race: a late message overtaken by the teardown.
		log.Debug().Str("module", "mesh").Str("from", string(from)).Msg("stale negotiation dropped")
		return
	}

	var p signalPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Error().Err(err).Str("module", "mesh").Str("from", string(from)).Msg("bad negotiation payload")
		return
	}

	if link, ok := c.registry.Link(from); ok {
		// Normal multi-message handshake traffic for a live connection.
		if err := c.applyToLinkLocked(from, link, p); err != nil {
			c.failPeerLocked(from, err)
		}
		return
	}

	// No live connection: only a fresh offer starts a responder, and only
	// while capture is live.
	if p.Kind != kindOffer {
		log.Debug().Str("module", "mesh").Str("from", string(from)).Str("kind", p.Kind).Msg("negotiation without peer dropped")
		return
	}
	if c.capture == nil {
		return
	}
	c.respondPeerLocked(from, p)
}

func (c *Coordinator) MuteChanged(channel domain.ChannelID, user domain.UserID, muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joinedToLocked(channel) {
		return
	}
	if p, ok := c.participants[user]; ok {
		p.Muted = muted
		c.participants[user] = p
	}
	if muted {
		delete(c.speaking, user)
	}
}

func (c *Coordinator) SpeakingChanged(channel domain.ChannelID, user domain.UserID, speaking bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.joinedToLocked(channel) {
		return
	}
	if speaking {
		c.speaking[user] = struct{}{}
	} else {
		delete(c.speaking, user)
	}
}

// RelayConnected fires on every socket (re)connect. While joined we
// re-announce ourselves and pull a fresh snapshot; mid-outage membership
// drift resolves from there.
func (c *Coordinator) RelayConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateJoined {
		return
	}
	c.relay.AnnounceJoin(c.channel, c.mutePref)
	c.relay.RequestParticipants(c.channel)
}

// --- peer setup/teardown, always under the coordinator mutex ---

func (c *Coordinator) initiatePeerLocked(remote domain.UserID) {
	link, ok := c.newWiredLinkLocked(remote, domain.RoleInitiator)
	if !ok {
		return
	}
	offer, err := link.CreateOffer()
	if err != nil {
		c.failPeerLocked(remote, err)
		return
	}
	c.sendSignalLocked(remote, offerPayload(offer))
}

func (c *Coordinator) respondPeerLocked(remote domain.UserID, p signalPayload) {
	link, ok := c.newWiredLinkLocked(remote, domain.RoleResponder)
	if !ok {
		return
	}
	answer, err := link.ApplyOffer(p.offer())
	if err != nil {
		c.failPeerLocked(remote, err)
		return
	}
	c.sendSignalLocked(remote, answerPayload(answer))
}

// newWiredLinkLocked builds a link, registers it and wires its callbacks.
func (c *Coordinator) newWiredLinkLocked(remote domain.UserID, role domain.PeerRole) (core.MediaLink, bool) {
	link, err := c.links.NewLink(remote)
	if err != nil {
		log.Error().Err(err).Str("module", "mesh").Str("remote", string(remote)).Msg("link create failed")
		return nil, false
	}
	if err := c.registry.Add(remote, role, link); err != nil {
		link.Close()
		log.Warn().Err(err).Str("module", "mesh").Str("remote", string(remote)).Msg("peer not added")
		return nil, false
	}

	channel := c.channel
	link.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		// Gathered on pion goroutines, possibly after a teardown raced us:
		// never signal a destroyed peer.
		if c.registry.IsDestroyed(remote) || link.IsClosed() {
			return
		}
		b, err := json.Marshal(candidatePayload(ci))
		if err != nil {
			return
		}
		c.relay.SendNegotiation(channel, remote, b)
	})
	link.OnTrack(func(track core.RemoteTrack) { c.remoteTrackArrived(remote, link, track) })
	link.OnClosed(func() { c.peerClosed(remote, link) })

	if err := link.AddLocalTrack(c.capture.Track()); err != nil {
		c.failPeerLocked(remote, err)
		return nil, false
	}
	if err := link.Start(c.appCtx); err != nil {
		c.failPeerLocked(remote, err)
		return nil, false
	}
	return link, true
}

func (c *Coordinator) applyToLinkLocked(from domain.UserID, link core.MediaLink, p signalPayload) error {
	switch p.Kind {
	case kindOffer:
		// Renegotiation on a live link: answer it.
		answer, err := link.ApplyOffer(p.offer())
		if err != nil {
			return err
		}
		c.sendSignalLocked(from, answerPayload(answer))
		return nil
	case kindAnswer:
		return link.ApplyAnswer(p.answer())
	case kindCandidate:
		return link.AddICECandidate(p.candidateInit())
	default:
		log.Warn().Str("module", "mesh").Str("from", string(from)).Str("kind", p.Kind).Msg("unknown negotiation kind")
		return nil
	}
}

// remoteTrackArrived runs on a pion goroutine when the remote audio lands.
// The registered link must still be the one that fired: a torn-down link's
// late callbacks must never touch the successor connection a rejoin may have
// registered under the same user id.
func (c *Coordinator) remoteTrackArrived(remote domain.UserID, link core.MediaLink, track core.RemoteTrack) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateJoined {
		return
	}
	if cur, ok := c.registry.Link(remote); !ok || cur != link {
		// Torn down or superseded while the track was in flight.
		return
	}
	if !c.registry.MarkConnected(remote) {
		return
	}
	c.sink.Attach(remote, track)
}

// peerClosed runs when a link dies on its own (ICE failure, remote hangup).
func (c *Coordinator) peerClosed(remote domain.UserID, link core.MediaLink) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateJoined {
		return
	}
	if cur, ok := c.registry.Link(remote); !ok || cur != link {
		return
	}
	log.Info().Str("module", "mesh").Str("remote", string(remote)).Msg("peer link closed")
	c.destroyPeerLocked(remote)
}

// failPeerLocked isolates a negotiation failure to the one affected peer.
func (c *Coordinator) failPeerLocked(remote domain.UserID, err error) {
	negErr := &core.NegotiationError{Remote: remote, Err: err}
	log.Error().Err(negErr).Str("module", "mesh").Msg("peer failed")
	c.destroyPeerLocked(remote)
}

func (c *Coordinator) destroyPeerLocked(remote domain.UserID) {
	c.registry.Destroy(remote)
	c.sink.Detach(remote)
}

func (c *Coordinator) sendSignalLocked(remote domain.UserID, p signalPayload) {
	b, err := json.Marshal(p)
	if err != nil {
		log.Error().Err(err).Str("module", "mesh").Msg("marshal negotiation payload")
		return
	}
	c.relay.SendNegotiation(c.channel, remote, b)
}
