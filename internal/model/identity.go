package model

import (
	"time"

	"github.com/google/uuid"
)

// ExternalIdentityLink ties a messaging-platform chat to a directory user.
// One chat per user and one user per chat.
type ExternalIdentityLink struct {
	UserID   uuid.UUID `json:"user_id"`
	ChatID   int64     `json:"chat_id"`
	Username *string   `json:"username,omitempty"`
	LinkedAt time.Time `json:"linked_at"`
}

// Registration is the identity triple sent to the bot as "Surname Name Phone".
type Registration struct {
	Surname  string
	Name     string
	Phone    string // E.164
	ChatID   int64  // zero when registering without a chat
	Username string
}

// Credentials is what the bot hands back after registration.
// Password is only set for newly created accounts.
type Credentials struct {
	UserID   uuid.UUID
	Login    string
	Password string
	Created  bool
}
