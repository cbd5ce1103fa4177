package relay

import (
	"encoding/json"

	"github.com/dkeye/meshvoice/internal/domain"
)

// Wire envelope: every relay message carries a type tag; the rest of the
// fields depend on it. Negotiation payloads are opaque and passed through
// verbatim.

type outJoin struct {
	Type    string           `json:"type"`
	Channel domain.ChannelID `json:"channelId"`
	IsMuted bool             `json:"isMuted"`
}

type outLeave struct {
	Type    string           `json:"type"`
	Channel domain.ChannelID `json:"channelId"`
}

type outSignal struct {
	Type    string           `json:"type"`
	Channel domain.ChannelID `json:"channelId"`
	Target  domain.UserID    `json:"targetUserId"`
	Payload json.RawMessage  `json:"payload"`
}

type outMute struct {
	Type    string           `json:"type"`
	Channel domain.ChannelID `json:"channelId"`
	IsMuted bool             `json:"isMuted"`
}

type outSpeaking struct {
	Type    string           `json:"type"`
	Channel domain.ChannelID `json:"channelId"`
}

type outParticipants struct {
	Type    string           `json:"type"`
	Channel domain.ChannelID `json:"channelId"`
}

type inUserJoined struct {
	UserID   domain.UserID    `json:"userId"`
	Username string           `json:"username"`
	Channel  domain.ChannelID `json:"channelId"`
	IsMuted  bool             `json:"isMuted"`
}

type inUserLeft struct {
	UserID  domain.UserID    `json:"userId"`
	Channel domain.ChannelID `json:"channelId"`
}

type inSignal struct {
	UserID  domain.UserID    `json:"userId"`
	Channel domain.ChannelID `json:"channelId"`
	Payload json.RawMessage  `json:"payload"`
}

type inMuteChanged struct {
	UserID  domain.UserID    `json:"userId"`
	Channel domain.ChannelID `json:"channelId"`
	IsMuted bool             `json:"isMuted"`
}

type inSpeaking struct {
	UserID  domain.UserID    `json:"userId"`
	Channel domain.ChannelID `json:"channelId"`
}

type inParticipants struct {
	Channel      domain.ChannelID     `json:"channelId"`
	Participants []domain.Participant `json:"participants"`
}
