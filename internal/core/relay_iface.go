// Package core holds the interface seams between the voice subsystem's
// components and the error taxonomy they share. No lifecycle logic lives
// here.
package core

import (
	"encoding/json"

	"github.com/dkeye/meshvoice/internal/domain"
)

// RelayClient is the outbound half of the signaling relay, scoped by channel
// id. Every call is fire-and-forget: when the socket is down the message is
// dropped and the relay transport's reconnect/resync is the recovery path.
type RelayClient interface {
	AnnounceJoin(channel domain.ChannelID, muted bool)
	AnnounceLeave(channel domain.ChannelID)
	SendNegotiation(channel domain.ChannelID, target domain.UserID, payload json.RawMessage)
	AnnounceMute(channel domain.ChannelID, muted bool)
	AnnounceSpeaking(channel domain.ChannelID, speaking bool)
	RequestParticipants(channel domain.ChannelID)
}

// RelayHandler receives inbound relay events. Delivery is at-least-once with
// FIFO per remote sender only; the implementation must serialize its own
// state mutation.
type RelayHandler interface {
	ParticipantJoined(channel domain.ChannelID, p domain.Participant)
	ParticipantLeft(channel domain.ChannelID, user domain.UserID)
	ParticipantsSnapshot(channel domain.ChannelID, list []domain.Participant)
	NegotiationReceived(channel domain.ChannelID, from domain.UserID, payload json.RawMessage)
	MuteChanged(channel domain.ChannelID, user domain.UserID, muted bool)
	SpeakingChanged(channel domain.ChannelID, user domain.UserID, speaking bool)
	// RelayConnected fires on every successful (re)connect of the socket so
	// the handler can re-announce and request a fresh participants snapshot.
	RelayConnected()
}
