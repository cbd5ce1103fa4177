package relay

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/meshvoice/internal/domain"
)

func participantOf(p inUserJoined) domain.Participant {
	return domain.Participant{UserID: p.UserID, Username: p.Username, Muted: p.IsMuted}
}

func (c *Client) AnnounceJoin(channel domain.ChannelID, muted bool) {
	c.sendJSON(outJoin{Type: "join_voice", Channel: channel, IsMuted: muted})
}

func (c *Client) AnnounceLeave(channel domain.ChannelID) {
	c.sendJSON(outLeave{Type: "leave_voice", Channel: channel})
}

func (c *Client) SendNegotiation(channel domain.ChannelID, target domain.UserID, payload json.RawMessage) {
	c.sendJSON(outSignal{Type: "voice_signal", Channel: channel, Target: target, Payload: payload})
}

func (c *Client) AnnounceMute(channel domain.ChannelID, muted bool) {
	c.sendJSON(outMute{Type: "voice_mute_toggle", Channel: channel, IsMuted: muted})
}

func (c *Client) AnnounceSpeaking(channel domain.ChannelID, speaking bool) {
	t := "voice_speaking_start"
	if !speaking {
		t = "voice_speaking_stop"
	}
	c.sendJSON(outSpeaking{Type: t, Channel: channel})
}

func (c *Client) RequestParticipants(channel domain.ChannelID) {
	c.sendJSON(outParticipants{Type: "request_voice_participants", Channel: channel})
}

func (c *Client) sendJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		// Fire-and-forget by contract: resync happens via the participants
		// snapshot once the socket is back.
		log.Debug().Err(err).Str("module", "relay").Msg("outbound dropped")
	}
}
