package domain

type (
	ChannelID string
	RoomID    string
)

// Channel is a voice channel in the room directory. Immutable; the
// directory itself is managed by an external collaborator.
type Channel struct {
	ID     ChannelID
	Name   string
	RoomID RoomID
}
