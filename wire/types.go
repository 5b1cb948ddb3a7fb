package wire

type (
	// Tag identifies the kind of frame.
	Tag byte

	// MessageID is the identity of the chat message, shared by both peers without negotiation.
	MessageID uint64

	// Timestamp is the time message was sent, in seconds since epoch.
	Timestamp uint64
)

// Frame tags.
const (
	TagMessage Tag = iota
	TagReceipt
	TagDisconnect
)

func (t Tag) String() string {
	switch t {
	case TagMessage:
		return "message"
	case TagReceipt:
		return "receipt"
	case TagDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Frame is the single unit exchanged between peers.
type Frame struct {
	Tag Tag

	// SentAt and Content are set for TagMessage.
	SentAt  Timestamp
	Content string

	// ID is set for TagReceipt.
	ID MessageID
}
