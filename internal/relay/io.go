package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, send chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-send:
			if !ok {
				return
			}
			if err := conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("writePump set deadline")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "relay").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *Client) readPump(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Error().Err(err).Str("module", "relay").Msg("readPump read error")
			return
		}
		c.dispatch(data)
	}
}

// dispatch routes one inbound frame by its type tag. A single read pump
// preserves the relay's per-sender FIFO ordering.
func (c *Client) dispatch(data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("bad json")
		return
	}

	switch env.Type {
	case "user_joined_voice":
		var p inUserJoined
		if !c.decode(data, &p) {
			return
		}
		c.handler.ParticipantJoined(p.Channel, participantOf(p))
	case "user_left_voice":
		var p inUserLeft
		if !c.decode(data, &p) {
			return
		}
		c.handler.ParticipantLeft(p.Channel, p.UserID)
	case "voice_participants":
		var p inParticipants
		if !c.decode(data, &p) {
			return
		}
		c.handler.ParticipantsSnapshot(p.Channel, p.Participants)
	case "voice_signal":
		var p inSignal
		if !c.decode(data, &p) {
			return
		}
		c.handler.NegotiationReceived(p.Channel, p.UserID, p.Payload)
	case "user_mute_changed":
		var p inMuteChanged
		if !c.decode(data, &p) {
			return
		}
		c.handler.MuteChanged(p.Channel, p.UserID, p.IsMuted)
	case "user_speaking_start":
		var p inSpeaking
		if !c.decode(data, &p) {
			return
		}
		c.handler.SpeakingChanged(p.Channel, p.UserID, true)
	case "user_speaking_stop":
		var p inSpeaking
		if !c.decode(data, &p) {
			return
		}
		c.handler.SpeakingChanged(p.Channel, p.UserID, false)
	default:
		log.Warn().Str("module", "relay").Str("type", env.Type).Msg("unknown message")
	}
}

func (c *Client) decode(data []byte, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("module", "relay").Msg("bad payload")
		return false
	}
	return true
}
