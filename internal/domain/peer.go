package domain

// PeerRole says which side of the negotiation this end plays.
type PeerRole int

const (
	RoleInitiator PeerRole = iota
	RoleResponder
)

func (r PeerRole) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	}
	return "unknown"
}

// PeerState is the per-connection state machine. Destroyed is terminal.
type PeerState int

const (
	PeerNegotiating PeerState = iota
	PeerConnected
	PeerDestroyed
)

func (s PeerState) String() string {
	switch s {
	case PeerNegotiating:
		return "negotiating"
	case PeerConnected:
		return "connected"
	case PeerDestroyed:
		return "destroyed"
	}
	return "unknown"
}
