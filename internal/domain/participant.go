// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

type UserID string

// Participant is one user currently placed in a voice channel.
// The coordinator keeps the set for the joined channel only.
type Participant struct {
	UserID   UserID `json:"userId"`
	Username string `json:"username"`
	Muted    bool   `json:"isMuted"`
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(id UserID, username string, muted bool) (*Participant, error) {
	if len(username) == 0 {
		return nil, ErrUsernameEmpty
	}
	if len(username) > MaxUsernameLen {
		return nil, ErrUsernameTooLong
	}
	return &Participant{UserID: id, Username: username, Muted: muted}, nil
}
