package mesh

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meshvoice/internal/core"
	"github.com/dkeye/meshvoice/internal/domain"
)

type peerEntry struct {
	role      domain.PeerRole
	state     domain.PeerState
	link      core.MediaLink
	createdAt time.Time
	expire    *time.Timer
}

// PeerStatus is a read-only view of one peer connection for diagnostics.
type PeerStatus struct {
	UserID    domain.UserID `json:"userId"`
	Role      string        `json:"role"`
	State     string        `json:"state"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Registry owns every peer connection of the current channel membership.
// Invariants it enforces: at most one live (non-destroyed) link per remote
// user, and once a user is in the destroyed set, no signaling reaches a
// stale link for that user until the set is reset by a fresh membership.
type Registry struct {
	mu        sync.Mutex
	peers     map[domain.UserID]*peerEntry
	destroyed map[domain.UserID]struct{}

	// expiry bounds how long a peer may sit in Negotiating; linger delays
	// removing destroyed entries from the map so concurrent readers settle.
	expiry   time.Duration
	linger   time.Duration
	onExpire func(domain.UserID)
}

func NewRegistry(expiry, linger time.Duration) *Registry {
	return &Registry{
		peers:     make(map[domain.UserID]*peerEntry),
		destroyed: make(map[domain.UserID]struct{}),
		expiry:    expiry,
		linger:    linger,
	}
}

// OnNegotiationExpired sets the callback fired when a peer exceeds the
// negotiation deadline. Called before any Add.
func (r *Registry) OnNegotiationExpired(fn func(domain.UserID)) { r.onExpire = fn }

// Add registers a fresh peer in Negotiating state. A live peer for the same
// user is an invariant violation and is rejected. Re-adding a previously
// destroyed user (a rejoin) clears it from the destroyed set so the new
// handshake can flow.
func (r *Registry) Add(remote domain.UserID, role domain.PeerRole, link core.MediaLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.peers[remote]; ok && e.state != domain.PeerDestroyed {
		return core.ErrPeerExists
	}
	e := &peerEntry{role: role, state: domain.PeerNegotiating, link: link, createdAt: time.Now()}
	if r.expiry > 0 && r.onExpire != nil {
		fn := r.onExpire
		e.expire = time.AfterFunc(r.expiry, func() {
			if r.stillNegotiating(remote, e) {
				fn(remote)
			}
		})
	}
	r.peers[remote] = e
	delete(r.destroyed, remote)
	log.Info().Str("module", "mesh.registry").Str("remote", string(remote)).Str("role", role.String()).Msg("peer added")
	return nil
}

func (r *Registry) stillNegotiating(remote domain.UserID, e *peerEntry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.peers[remote]
	return ok && cur == e && cur.state == domain.PeerNegotiating
}

// Link returns the live link for remote, if any.
func (r *Registry) Link(remote domain.UserID) (core.MediaLink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[remote]
	if !ok || e.state == domain.PeerDestroyed {
		return nil, false
	}
	return e.link, true
}

// MarkConnected moves a negotiating peer to Connected and stops its
// negotiation deadline. Reports false when the peer is gone or destroyed.
func (r *Registry) MarkConnected(remote domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.peers[remote]
	if !ok || e.state == domain.PeerDestroyed {
		return false
	}
	if e.expire != nil {
		e.expire.Stop()
	}
	if e.state != domain.PeerConnected {
		e.state = domain.PeerConnected
		log.Info().
			Str("module", "mesh.registry").
			Str("remote", string(remote)).
			Dur("negotiated_in", time.Since(e.createdAt)).
			Msg("peer connected")
	}
	return true
}

func (r *Registry) IsDestroyed(remote domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.destroyed[remote]
	return ok
}

// Destroy tears down the peer for remote and records it in the destroyed
// set, whether or not a live link existed. Idempotent; reports whether a
// live link was actually closed. The map entry outlives the teardown by
// the linger delay so in-flight readers never see the key vanish mid-walk;
// correctness never depends on that delay.
func (r *Registry) Destroy(remote domain.UserID) bool {
	r.mu.Lock()
	r.destroyed[remote] = struct{}{}
	e, ok := r.peers[remote]
	if !ok || e.state == domain.PeerDestroyed {
		r.mu.Unlock()
		return false
	}
	e.state = domain.PeerDestroyed
	if e.expire != nil {
		e.expire.Stop()
	}
	link := e.link
	if r.linger > 0 {
		time.AfterFunc(r.linger, func() {
			r.mu.Lock()
			if cur, ok := r.peers[remote]; ok && cur == e {
				delete(r.peers, remote)
			}
			r.mu.Unlock()
		})
	} else {
		delete(r.peers, remote)
	}
	r.mu.Unlock()

	link.Close()
	log.Info().Str("module", "mesh.registry").Str("remote", string(remote)).Msg("peer destroyed")
	return true
}

// DestroyAll tears down every live peer, keeping the destroyed set.
func (r *Registry) DestroyAll() {
	for _, remote := range r.liveUsers() {
		r.Destroy(remote)
	}
}

// Reset clears everything for a fresh channel membership: all live peers are
// destroyed, then the map and the destroyed set are emptied synchronously.
func (r *Registry) Reset() {
	r.DestroyAll()
	r.mu.Lock()
	r.peers = make(map[domain.UserID]*peerEntry)
	r.destroyed = make(map[domain.UserID]struct{})
	r.mu.Unlock()
}

func (r *Registry) liveUsers() []domain.UserID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.UserID, 0, len(r.peers))
	for remote, e := range r.peers {
		if e.state != domain.PeerDestroyed {
			out = append(out, remote)
		}
	}
	return out
}

func (r *Registry) LiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.peers {
		if e.state != domain.PeerDestroyed {
			n++
		}
	}
	return n
}

// Statuses snapshots all known peers, destroyed stragglers included.
func (r *Registry) Statuses() []PeerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PeerStatus, 0, len(r.peers))
	for remote, e := range r.peers {
		out = append(out, PeerStatus{
			UserID:    remote,
			Role:      e.role.String(),
			State:     e.state.String(),
			CreatedAt: e.createdAt,
		})
	}
	return out
}
