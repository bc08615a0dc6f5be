package schema

import "strconv"

// ConnID identifies an accepted SSH connection for its whole lifetime.
type ConnID uint64

func (id ConnID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Mode selects how a session responds to the client.
type Mode int

const (
	// ModePlain answers with canned text responses.
	ModePlain Mode = iota
	// ModeInteractive drives a full-screen, event-driven UI.
	ModeInteractive
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeInteractive:
		return "interactive"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// SessionInfo is a read-only view of a registered session.
type SessionInfo struct {
	ID        ConnID `json:"id"`
	ChannelID string `json:"channel_id"`
	Username  string `json:"username"`
	Mode      string `json:"mode"`
}
