package parley

import (
	"time"

	"github.com/outofforest/parley/wire"
)

// Sender tells who wrote the message.
type Sender int

// Senders.
const (
	SenderUnknown Sender = iota
	SenderSelf
	SenderOther
)

func (s Sender) String() string {
	switch s {
	case SenderSelf:
		return "self"
	case SenderOther:
		return "other"
	default:
		return "unknown"
	}
}

// Message is the chat message.
// Everything except the seen flag is fixed at creation.
type Message struct {
	id      wire.MessageID
	content string
	sentAt  wire.Timestamp
	sender  Sender
	seen    bool
}

// NewMessage creates message written locally, sent now.
func NewMessage(content string) Message {
	return NewMessageWithID(content, wire.CompactID)
}

// NewMessageWithID creates message written locally, using provided identity scheme.
func NewMessageWithID(content string, idFunc wire.IDFunc) Message {
	return newMessage(SenderSelf, wire.Timestamp(time.Now().Unix()), content, idFunc)
}

// ReceivedMessage creates message received from the peer.
func ReceivedMessage(sentAt wire.Timestamp, content string) Message {
	return ReceivedMessageWithID(sentAt, content, wire.CompactID)
}

// ReceivedMessageWithID creates message received from the peer, using provided identity scheme.
func ReceivedMessageWithID(sentAt wire.Timestamp, content string, idFunc wire.IDFunc) Message {
	return newMessage(SenderOther, sentAt, content, idFunc)
}

func newMessage(sender Sender, sentAt wire.Timestamp, content string, idFunc wire.IDFunc) Message {
	return Message{
		id:      idFunc(content, sentAt),
		content: content,
		sentAt:  sentAt,
		sender:  sender,
	}
}

// ID returns message identity.
func (m Message) ID() wire.MessageID {
	return m.id
}

// Content returns text of the message.
func (m Message) Content() string {
	return m.content
}

// SentAt returns the time message was sent, in seconds since epoch.
func (m Message) SentAt() wire.Timestamp {
	return m.sentAt
}

// SentTime returns the time message was sent, in local time zone.
func (m Message) SentTime() time.Time {
	return time.Unix(int64(m.sentAt), 0).Local()
}

// Sender returns author of the message.
func (m Message) Sender() Sender {
	return m.sender
}

// Seen tells if the message has been read by its recipient.
func (m Message) Seen() bool {
	return m.seen
}

// SetSeen marks message as read.
func (m *Message) SetSeen() {
	m.seen = true
}

// Equal compares message identities.
func (m Message) Equal(other Message) bool {
	return m.id == other.id
}
