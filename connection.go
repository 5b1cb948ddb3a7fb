package parley

import (
	"bufio"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/parley/wire"
)

// Connection is the stream to the peer, the same for dialed and accepted sockets.
type Connection struct {
	conn   net.Conn
	config Config
	r      *bufio.Reader
	w      *bufio.Writer
	dec    *wire.Decoder
	buf    []byte
}

// NewConnection wraps the socket.
func NewConnection(conn net.Conn, config Config) *Connection {
	config = config.withDefaults()
	r := bufio.NewReader(conn)
	return &Connection{
		conn:   conn,
		config: config,
		r:      r,
		w:      bufio.NewWriter(conn),
		dec:    wire.NewDecoder(r, config.MaxMessageSize),
	}
}

// Send buffers the frame. It is written by Flush.
func (c *Connection) Send(f wire.Frame) error {
	var err error
	c.buf, err = wire.AppendFrame(c.buf[:0], f)
	if err != nil {
		return err
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		return errors.WithStack(err)
	}
	_, err = c.w.Write(c.buf)
	return errors.WithStack(err)
}

// Flush writes buffered frames to the socket.
func (c *Connection) Flush() error {
	if c.w.Buffered() == 0 {
		return nil
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(c.w.Flush())
}

// Receive returns next frame if peer has started sending one.
// If nothing arrives within the poll timeout, false is returned.
// io.EOF is returned if peer closed the stream.
func (c *Connection) Receive() (wire.Frame, bool, error) {
	if c.r.Buffered() == 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.config.PollTimeout)); err != nil {
			return wire.Frame{}, false, errors.WithStack(err)
		}
		if _, err := c.r.Peek(1); err != nil {
			switch {
			case isTimeout(err):
				return wire.Frame{}, false, nil
			case errors.Is(err, io.EOF):
				return wire.Frame{}, false, io.EOF
			default:
				return wire.Frame{}, false, errors.WithStack(err)
			}
		}
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.config.FrameTimeout)); err != nil {
		return wire.Frame{}, false, errors.WithStack(err)
	}
	f, err := c.dec.Decode()
	if err != nil {
		return wire.Frame{}, false, err
	}
	return f, true, nil
}

// RemoteAddr returns the address of the peer.
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Close closes the socket.
func (c *Connection) Close() error {
	return errors.WithStack(c.conn.Close())
}
