package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is a persisted chat message between exactly one unordered
// pair of users. PID is assigned once, at persistence time, and is the
// only identifier ever used to reference the message afterwards. The
// client-chosen RandomID is a temporary correlation token and is never
// used as the canonical id.
type Message struct {
	PID       uuid.UUID
	Sender    string // user PK
	Recipient string // user PK
	Text      string
	FileID    string // set instead of Text for file messages
	RandomID  int64
	Read      bool
	Extra     map[string]any
	CreatedAt time.Time
}

// DialogKey returns the canonical (sorted) pair identifying the dialog
// this message belongs to.
func DialogKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}
