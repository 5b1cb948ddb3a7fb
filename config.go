package parley

import (
	"time"

	"github.com/outofforest/parley/wire"
)

// Config is the config of processor.
type Config struct {
	// TickInterval is the cadence of the session loop.
	TickInterval time.Duration

	// PollTimeout bounds the time spent waiting for data which is not there yet.
	// It applies to reading the first byte of a frame and to accepting a peer.
	PollTimeout time.Duration

	// FrameTimeout is the time given to the peer to deliver the rest of a started frame.
	FrameTimeout time.Duration

	WriteTimeout time.Duration
	DialTimeout  time.Duration

	// ListenHost is the interface server binds to, empty means all of them.
	ListenHost string

	// BasePort is the first port server tries to bind, next MaxPortAttempts-1 ports are tried after it.
	BasePort        uint16
	MaxPortAttempts uint16

	// MaxMessageSize is the maximum accepted length of message content.
	MaxMessageSize uint64

	// IDFunc computes message identities. Both peers must use the same one.
	IDFunc wire.IDFunc
}

// DefaultConfig is the default config of processor.
var DefaultConfig = Config{
	TickInterval:    100 * time.Millisecond,
	PollTimeout:     5 * time.Millisecond,
	FrameTimeout:    time.Second,
	WriteTimeout:    5 * time.Second,
	DialTimeout:     10 * time.Second,
	BasePort:        50000,
	MaxPortAttempts: 100,
	MaxMessageSize:  1 << 20,
	IDFunc:          wire.CompactID,
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultConfig.TickInterval
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultConfig.PollTimeout
	}
	if c.FrameTimeout <= 0 {
		c.FrameTimeout = DefaultConfig.FrameTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultConfig.WriteTimeout
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultConfig.DialTimeout
	}
	if c.BasePort == 0 {
		c.BasePort = DefaultConfig.BasePort
	}
	if c.MaxPortAttempts == 0 {
		c.MaxPortAttempts = DefaultConfig.MaxPortAttempts
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultConfig.MaxMessageSize
	}
	if c.IDFunc == nil {
		c.IDFunc = DefaultConfig.IDFunc
	}
	return c
}
