package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/itiky/synclist/model"
)

type (
	// MockTransport implements Transport in memory, used by tests.
	MockTransport struct {
		sync.Mutex
		// Connect failure to return (if set)
		ConnectErr error
		// Every Emit from every connection in order: "event:payload"
		Emitted []string
		conns   []*MockConn
	}

	// MockConn implements Conn in memory.
	MockConn struct {
		transport *MockTransport
		inCh      chan model.Envelope
		closeCh   chan struct{}
		closeOnce sync.Once
		failCh    chan error
	}
)

// Connect implements Transport interface.
func (t *MockTransport) Connect(ctx context.Context) (Conn, error) {
	t.Lock()
	defer t.Unlock()

	if t.ConnectErr != nil {
		return nil, t.ConnectErr
	}

	c := &MockConn{
		transport: t,
		inCh:      make(chan model.Envelope, 64),
		closeCh:   make(chan struct{}),
		failCh:    make(chan error, 1),
	}
	t.conns = append(t.conns, c)

	return c, nil
}

// Conns returns all connections opened so far.
func (t *MockTransport) Conns() []*MockConn {
	t.Lock()
	defer t.Unlock()

	conns := make([]*MockConn, len(t.conns))
	copy(conns, t.conns)

	return conns
}

// Last returns the latest connection (nil if none).
func (t *MockTransport) Last() *MockConn {
	t.Lock()
	defer t.Unlock()

	if len(t.conns) == 0 {
		return nil
	}

	return t.conns[len(t.conns)-1]
}

// EmittedEvents returns the emitted events log copy.
func (t *MockTransport) EmittedEvents() []string {
	t.Lock()
	defer t.Unlock()

	events := make([]string, len(t.Emitted))
	copy(events, t.Emitted)

	return events
}

// Emit implements Conn interface.
func (c *MockConn) Emit(event string, data interface{}) error {
	if c.IsClosed() {
		return ErrClosed
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	c.transport.Lock()
	c.transport.Emitted = append(c.transport.Emitted, fmt.Sprintf("%s:%s", event, raw))
	c.transport.Unlock()

	return nil
}

// Receive implements Conn interface.
func (c *MockConn) Receive() (model.Envelope, error) {
	select {
	case e := <-c.inCh:
		return e, nil
	case err := <-c.failCh:
		return model.Envelope{}, err
	case <-c.closeCh:
		return model.Envelope{}, ErrClosed
	}
}

// Close implements Conn interface.
func (c *MockConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})

	return nil
}

// IsClosed checks if the connection was closed.
func (c *MockConn) IsClosed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

// Push simulates a server event.
func (c *MockConn) Push(e model.Envelope) {
	c.inCh <- e
}

// PushDelta simulates a server delta event.
func (c *MockConn) PushDelta(d model.Delta) error {
	e, err := model.EnvelopeFromDelta(d)
	if err != nil {
		return err
	}
	c.Push(e)

	return nil
}

// Fail simulates a connection drop.
func (c *MockConn) Fail(err error) {
	c.failCh <- err
}
