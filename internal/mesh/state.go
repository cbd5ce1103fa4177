package mesh

// ChannelState is the coordinator's membership state machine.
type ChannelState int

const (
	StateNotJoined ChannelState = iota
	StateJoining
	StateJoined
	StateLeaving
)

func (s ChannelState) String() string {
	switch s {
	case StateNotJoined:
		return "not_joined"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	}
	return "unknown"
}
