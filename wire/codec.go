package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const (
	tagSize     = 1
	uint64Size  = 8
	headerSize  = tagSize + 2*uint64Size
	receiptSize = tagSize + uint64Size
)

// ErrProtocolViolation is returned when the stream does not contain a valid frame.
// Peer sending it can't be trusted anymore so session must be terminated.
var ErrProtocolViolation = errors.New("protocol violation")

// AppendMessage appends message frame to the buffer.
func AppendMessage(buf []byte, sentAt Timestamp, content string) []byte {
	buf = append(buf, byte(TagMessage))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(sentAt))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(content)))
	return append(buf, content...)
}

// AppendReceipt appends read receipt frame to the buffer.
func AppendReceipt(buf []byte, id MessageID) []byte {
	buf = append(buf, byte(TagReceipt))
	return binary.LittleEndian.AppendUint64(buf, uint64(id))
}

// AppendDisconnect appends disconnect notice to the buffer.
func AppendDisconnect(buf []byte) []byte {
	return append(buf, byte(TagDisconnect))
}

// AppendFrame appends any frame to the buffer.
func AppendFrame(buf []byte, f Frame) ([]byte, error) {
	switch f.Tag {
	case TagMessage:
		return AppendMessage(buf, f.SentAt, f.Content), nil
	case TagReceipt:
		return AppendReceipt(buf, f.ID), nil
	case TagDisconnect:
		return AppendDisconnect(buf), nil
	default:
		return nil, errors.Errorf("unknown tag %d", f.Tag)
	}
}

// Decoder reads frames from the stream.
type Decoder struct {
	r              io.Reader
	maxContentSize uint64
	buf            [headerSize]byte
}

// NewDecoder creates decoder. Messages with content longer than maxContentSize are rejected.
func NewDecoder(r io.Reader, maxContentSize uint64) *Decoder {
	return &Decoder{
		r:              r,
		maxContentSize: maxContentSize,
	}
}

// Decode reads next frame. io.EOF is returned only if stream ended on frame boundary.
func (d *Decoder) Decode() (Frame, error) {
	if _, err := io.ReadFull(d.r, d.buf[:tagSize]); err != nil {
		if errors.Is(err, io.EOF) {
			return Frame{}, io.EOF
		}
		return Frame{}, errors.WithStack(err)
	}

	tag := Tag(d.buf[0])
	switch tag {
	case TagMessage:
		if err := d.readFull(d.buf[tagSize:headerSize], "message header"); err != nil {
			return Frame{}, err
		}
		sentAt := binary.LittleEndian.Uint64(d.buf[tagSize:])
		size := binary.LittleEndian.Uint64(d.buf[tagSize+uint64Size:])
		if size > d.maxContentSize {
			return Frame{}, errors.Wrapf(ErrProtocolViolation, "content size %d exceeds limit %d",
				size, d.maxContentSize)
		}

		content := make([]byte, size)
		n, err := io.ReadFull(d.r, content)
		if err != nil {
			return Frame{}, errors.Wrapf(ErrProtocolViolation, "content declared %d bytes, received %d: %s",
				size, n, err)
		}

		return Frame{
			Tag:     TagMessage,
			SentAt:  Timestamp(sentAt),
			Content: string(content),
		}, nil
	case TagReceipt:
		if err := d.readFull(d.buf[tagSize:receiptSize], "receipt"); err != nil {
			return Frame{}, err
		}
		return Frame{
			Tag: TagReceipt,
			ID:  MessageID(binary.LittleEndian.Uint64(d.buf[tagSize:])),
		}, nil
	case TagDisconnect:
		return Frame{Tag: TagDisconnect}, nil
	default:
		return Frame{}, errors.Wrapf(ErrProtocolViolation, "unknown tag %d", tag)
	}
}

func (d *Decoder) readFull(b []byte, what string) error {
	n, err := io.ReadFull(d.r, b)
	if err != nil {
		return errors.Wrapf(ErrProtocolViolation, "truncated %s, received %d of %d bytes: %s",
			what, n, len(b), err)
	}
	return nil
}
