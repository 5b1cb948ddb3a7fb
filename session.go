package parley

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parley/wire"
)

func (p *Processor) runSession(ctx context.Context, role Role, c *Connection) error {
	log := logger.Get(ctx).With(zap.Stringer("role", role), zap.String("peer", c.RemoteAddr()))
	log.Info("Session started")

	defer func() {
		if err := c.Close(); err != nil {
			log.Warn("Closing connection failed", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(p.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.sayGoodbye(log, c)
			p.endSession(nil)
			log.Info("Session stopped")
			return nil
		case <-ticker.C:
		}

		if err := p.tick(log, c); err != nil {
			if errors.Is(err, ErrPeerDisconnected) {
				log.Info("Peer closed the connection")
			} else {
				log.Error("Session failed", zap.Error(err))
			}
			p.endSession(err)
			return nil
		}
	}
}

func (p *Processor) tick(log *zap.Logger, c *Connection) error {
	p.outgoing.mu.Lock()
	defer p.outgoing.mu.Unlock()
	p.outgoingReceipts.mu.Lock()
	defer p.outgoingReceipts.mu.Unlock()
	p.incoming.mu.Lock()
	defer p.incoming.mu.Unlock()
	p.incomingReceipts.mu.Lock()
	defer p.incomingReceipts.mu.Unlock()

	if err := p.sendLocked(c); err != nil {
		return err
	}
	if err := c.Flush(); err != nil {
		return errors.Wrap(err, "sending frames failed")
	}
	return p.receiveLocked(log, c)
}

func (p *Processor) sendLocked(c *Connection) error {
	for _, m := range p.outgoing.drainLocked() {
		if err := c.Send(wire.Frame{
			Tag:     wire.TagMessage,
			SentAt:  m.SentAt(),
			Content: m.Content(),
		}); err != nil {
			return errors.Wrap(err, "sending message failed")
		}
	}
	for _, id := range p.outgoingReceipts.drainLocked() {
		if err := c.Send(wire.Frame{
			Tag: wire.TagReceipt,
			ID:  id,
		}); err != nil {
			return errors.Wrap(err, "sending receipt failed")
		}
	}
	return nil
}

func (p *Processor) receiveLocked(log *zap.Logger, c *Connection) error {
	for {
		f, ok, err := c.Receive()
		switch {
		case errors.Is(err, io.EOF):
			return errors.WithStack(ErrPeerDisconnected)
		case err != nil:
			return err
		case !ok:
			return nil
		}

		switch f.Tag {
		case wire.TagMessage:
			p.incoming.pushLocked(ReceivedMessageWithID(f.SentAt, f.Content, p.config.IDFunc))
		case wire.TagReceipt:
			p.incomingReceipts.pushLocked(f.ID)
		case wire.TagDisconnect:
			log.Info("Peer announced disconnection")
			p.reportError(errors.WithStack(ErrPeerDisconnected))
		}
	}
}

// sayGoodbye sends what is still queued and notifies the peer that session ends.
func (p *Processor) sayGoodbye(log *zap.Logger, c *Connection) {
	p.outgoing.mu.Lock()
	defer p.outgoing.mu.Unlock()
	p.outgoingReceipts.mu.Lock()
	defer p.outgoingReceipts.mu.Unlock()

	err := p.sendLocked(c)
	if err == nil {
		err = c.Send(wire.Frame{Tag: wire.TagDisconnect})
	}
	if err == nil {
		err = c.Flush()
	}
	if err != nil {
		log.Debug("Sending disconnect notice failed", zap.Error(err))
	}
}
