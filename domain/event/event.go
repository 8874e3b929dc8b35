// Package event defines the outbound events fanned out over the group
// bus. Each variant maps to exactly one wire frame kind; translation to
// frames lives in the wire package.
package event

// Extras is caller-supplied metadata merged verbatim into the outbound
// frame, minus the frame's fixed field set. Events that never carry
// extras embed the zero value.
type Extras map[string]any

// Event is the sum of everything a session can receive from its group.
type Event interface {
	// ExtraFields returns pass-through metadata for the wire frame.
	ExtraFields() Extras
}

func (e Extras) ExtraFields() Extras { return e }

// TextMessage is the optimistic delivery of a freshly sent text
// message. It carries the client RandomID because the durable id does
// not exist yet at publish time.
type TextMessage struct {
	Extras
	RandomID      int64
	Text          string
	Sender        string // username
	Receiver      string // username
	SenderChannel string // suppress echo to the originating connection
}

// FileMessage is the delivery of a file message. Unlike TextMessage it
// is published after persistence and therefore carries the durable id.
type FileMessage struct {
	Extras
	DBID          string
	File          map[string]any
	Sender        string
	Receiver      string
	SenderChannel string
}

// MessageIDCreated reconciles an optimistic RandomID with the durable
// id assigned by the store.
type MessageIDCreated struct {
	Extras
	RandomID int64
	DBID     string
}

// MessageRead notifies the original sender that their message was read.
type MessageRead struct {
	Extras
	MessageID string
	Sender    string // username of the message sender
	Receiver  string // username of the reader
}

// NewUnreadCount carries the recomputed unread tally for one dialog
// direction.
type NewUnreadCount struct {
	Extras
	Sender string // username of the counterpart
	Count  int
}

// IsTyping and TypingStopped are transient signals, never persisted.
type IsTyping struct {
	Extras
	Username string
}

type TypingStopped struct {
	Extras
	Username string
}

// WentOnline and WentOffline are presence fan-out events.
type WentOnline struct {
	Extras
	Username string
}

type WentOffline struct {
	Extras
	Username string
}
