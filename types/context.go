package types

import (
	"context"
)

// ConnectionContext carries the teardown signal shared by the address book, the connection
// manager and the submitter. Once StopConnecting is called no component starts a new retry
// or reschedules a poll. Calls already on the wire are allowed to finish.
type ConnectionContext struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewConnectionContext(parent context.Context) *ConnectionContext {
	ctx, cancel := context.WithCancel(parent)
	return &ConnectionContext{
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *ConnectionContext) Context() context.Context {
	return c.ctx
}

func (c *ConnectionContext) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *ConnectionContext) StopConnecting() {
	c.cancel()
}

func (c *ConnectionContext) Stopped() bool {
	return c.ctx.Err() != nil
}
