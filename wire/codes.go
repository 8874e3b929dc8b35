// Package wire defines the frame envelope shared with clients: message
// kind codes, error kinds, inbound decoding and outbound encoding.
// Codes are part of the client contract and must never be renumbered.
package wire

// MessageType discriminates every frame, inbound and outbound.
type MessageType int

const (
	WentOnline       MessageType = 1
	WentOffline      MessageType = 2
	TextMessage      MessageType = 3
	FileMessage      MessageType = 4
	IsTyping         MessageType = 5
	MessageRead      MessageType = 6
	ErrorOccurred    MessageType = 7
	MessageIDCreated MessageType = 8
	NewUnreadCount   MessageType = 9
	TypingStopped    MessageType = 10
	Heartbeat        MessageType = 11
)

// Valid reports whether t is a known frame kind.
func (t MessageType) Valid() bool {
	return t >= WentOnline && t <= Heartbeat
}

func (t MessageType) String() string {
	switch t {
	case WentOnline:
		return "WentOnline"
	case WentOffline:
		return "WentOffline"
	case TextMessage:
		return "TextMessage"
	case FileMessage:
		return "FileMessage"
	case IsTyping:
		return "IsTyping"
	case MessageRead:
		return "MessageRead"
	case ErrorOccurred:
		return "ErrorOccurred"
	case MessageIDCreated:
		return "MessageIdCreated"
	case NewUnreadCount:
		return "NewUnreadCount"
	case TypingStopped:
		return "TypingStopped"
	case Heartbeat:
		return "Heartbeat"
	}
	return "Unknown"
}

// CloseUnauthenticated is the close code sent when a connection fails
// authentication before any session state is established.
const CloseUnauthenticated = 4001
