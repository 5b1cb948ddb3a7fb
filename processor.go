package parley

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/parley/wire"
)

var (
	// ErrPeerDisconnected is reported when the peer announces it is leaving or closes the stream.
	ErrPeerDisconnected = errors.New("other user disconnected")

	// ErrPortsExhausted is reported when server can't bind any port.
	ErrPortsExhausted = errors.New("no free port found")

	// ErrSessionActive is returned when operation requires that no session is running or awaited.
	ErrSessionActive = errors.New("session is active")

	// ErrWrongRole is returned when operation is not supported by the chosen role.
	ErrWrongRole = errors.New("operation not supported by the role")

	// ErrClosed is returned when processor has been closed.
	ErrClosed = errors.New("processor closed")
)

// Role defines which side of the link this instance is.
type Role int

// Roles.
const (
	RoleUnknown Role = iota
	RoleClient
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

// State is the state of the link.
type State int

// States.
const (
	StateUnknown State = iota
	StateRoleChosen
	StateNegotiating
	StateConnected
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateRoleChosen:
		return "roleChosen"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateTerminated:
		return "terminated"
	default:
		return "invalid"
	}
}

// Processor owns the link to the peer and mailboxes exchanging data with the presentation layer.
type Processor struct {
	config Config
	log    *zap.Logger
	group  *parallel.Group

	mu       sync.Mutex
	role     Role
	state    State
	listener *net.TCPListener
	port     uint16
	err      error

	outgoing         mailbox[Message]
	outgoingReceipts mailbox[wire.MessageID]
	incoming         mailbox[Message]
	incomingReceipts mailbox[wire.MessageID]
}

// New creates processor. Sessions run until ctx is canceled or Close is called.
func New(ctx context.Context, config Config) *Processor {
	return &Processor{
		config: config.withDefaults(),
		log:    logger.Get(ctx),
		group:  parallel.NewGroup(ctx),
	}
}

// Mode returns the role.
func (p *Processor) Mode() Role {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.role
}

// SetMode sets the role. It can't be changed while session is running or awaited.
func (p *Processor) SetMode(role Role) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateTerminated:
		return errors.WithStack(ErrClosed)
	case StateNegotiating, StateConnected:
		return errors.WithStack(ErrSessionActive)
	}

	p.role = role
	if role == RoleUnknown {
		p.state = StateUnknown
	} else {
		p.state = StateRoleChosen
	}
	return nil
}

// State returns the state of the link.
func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Connected tells if session with the peer is running.
func (p *Processor) Connected() bool {
	return p.State() == StateConnected
}

// WaitingOnConnection tells if server waits for the peer.
func (p *Processor) WaitingOnConnection() bool {
	return p.State() == StateNegotiating
}

// ServerPort returns the port server is bound to.
func (p *Processor) ServerPort() (uint16, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.port, p.port != 0
}

// Err returns the last reported error.
func (p *Processor) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.err
}

// Connect dials the server and starts the session.
func (p *Processor) Connect(ctx context.Context, address string, port uint16) error {
	if err := p.checkCanStart(RoleClient); err != nil {
		return err
	}

	addr := net.JoinHostPort(address, strconv.FormatUint(uint64(port), 10))
	dialer := net.Dialer{Timeout: p.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		err = errors.Wrap(err, "failed to connect to server")
		p.log.Error("Connecting failed", zap.String("address", addr), zap.Error(err))

		p.mu.Lock()
		defer p.mu.Unlock()

		p.err = err
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateRoleChosen {
		_ = conn.Close()
		if p.state == StateTerminated {
			return errors.WithStack(ErrClosed)
		}
		return errors.WithStack(ErrSessionActive)
	}

	p.startSessionLocked(conn)
	return nil
}

// CreateServer binds the first free port starting from the configured base and waits for the peer.
func (p *Processor) CreateServer() (uint16, error) {
	if err := p.checkCanStart(RoleServer); err != nil {
		return 0, err
	}

	ls, port, err := listen(p.config.ListenHost, p.config.BasePort, p.config.MaxPortAttempts)

	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.log.Error("Binding server failed", zap.Error(err))
		p.err = err
		return 0, err
	}
	if p.state != StateRoleChosen {
		_ = ls.Close()
		if p.state == StateTerminated {
			return 0, errors.WithStack(ErrClosed)
		}
		return 0, errors.WithStack(ErrSessionActive)
	}

	p.log.Info("Waiting for peer", zap.Uint16("port", port))

	p.listener = ls
	p.port = port
	p.err = nil
	p.state = StateNegotiating
	return port, nil
}

// WaitOnConnection accepts the peer if it is already there.
// It never waits longer than the poll timeout. True is returned when session has started.
func (p *Processor) WaitOnConnection() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateNegotiating {
		return false, errors.Errorf("not waiting on connection, state: %s", p.state)
	}

	if err := p.listener.SetDeadline(time.Now().Add(p.config.PollTimeout)); err != nil {
		return false, errors.WithStack(err)
	}
	conn, err := p.listener.Accept()
	if err != nil {
		if isTimeout(err) {
			return false, nil
		}
		err = errors.Wrap(err, "accepting peer failed")
		p.err = err
		return false, err
	}

	if err := p.listener.Close(); err != nil {
		p.log.Warn("Closing listener failed", zap.Error(err))
	}
	p.listener = nil

	p.startSessionLocked(conn)
	return true, nil
}

// NewMessage creates local message using configured identity scheme.
func (p *Processor) NewMessage(content string) Message {
	return NewMessageWithID(content, p.config.IDFunc)
}

// QueueMessage schedules message to be sent to the peer.
func (p *Processor) QueueMessage(m Message) {
	p.outgoing.Push(m)
}

// Seen schedules read receipt of the message to be sent to the peer.
func (p *Processor) Seen(id wire.MessageID) {
	p.outgoingReceipts.Push(id)
}

// IncomingMessages returns messages received since previous call.
func (p *Processor) IncomingMessages() []Message {
	return p.incoming.Drain()
}

// ReadMessages returns IDs of messages read by the peer since previous call.
func (p *Processor) ReadMessages() []wire.MessageID {
	return p.incomingReceipts.Drain()
}

// Close stops the session and waits until it exits. Connection is closed afterwards.
func (p *Processor) Close() error {
	p.mu.Lock()
	if p.state == StateTerminated {
		p.mu.Unlock()
		return nil
	}
	p.state = StateTerminated
	ls := p.listener
	p.listener = nil
	p.mu.Unlock()

	p.group.Exit(nil)
	err := p.group.Wait()

	if ls != nil {
		if err2 := ls.Close(); err == nil {
			err = errors.WithStack(err2)
		}
	}
	return err
}

func (p *Processor) checkCanStart(role Role) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateTerminated:
		return errors.WithStack(ErrClosed)
	case StateNegotiating, StateConnected:
		return errors.WithStack(ErrSessionActive)
	}
	if p.role != role {
		return errors.Wrapf(ErrWrongRole, "role %s required, current: %s", role, p.role)
	}
	return nil
}

func (p *Processor) startSessionLocked(conn net.Conn) {
	p.state = StateConnected
	p.err = nil

	c := NewConnection(conn, p.config)
	role := p.role
	p.group.Spawn("session", parallel.Continue, func(ctx context.Context) error {
		return p.runSession(ctx, role, c)
	})
}

// reportError stores the error without changing the state.
func (p *Processor) reportError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.err = err
}

// endSession is called by the session loop when it exits.
func (p *Processor) endSession(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.err = err
	}
	if p.state == StateConnected {
		p.state = StateRoleChosen
	}
}
