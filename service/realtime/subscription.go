package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/itiky/synclist/model"
)

// Subscription is a realtime channel room membership yielding a typed stream of list deltas.
// The connection is exclusively owned by the Subscription.
type Subscription struct {
	// Config
	listId model.ListId
	// State
	conn     Conn
	deltasCh chan model.Delta
	err      error
	closing  bool
	//
	lock   sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// String implements the stringer interface.
func (s *Subscription) String() string {
	return fmt.Sprintf("Subscription (%s)", s.listId)
}

// ListId returns the room id.
func (s *Subscription) ListId() model.ListId {
	return s.listId
}

// Deltas returns the delta stream.
// The channel is closed when the subscription is closed or the connection fails (see Err).
func (s *Subscription) Deltas() <-chan model.Delta {
	return s.deltasCh
}

// Done is closed once the read pump has stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.doneCh
}

// Err returns the connection failure reason (nil for a regular Close).
func (s *Subscription) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.err
}

// Close leaves the room and closes the connection.
// Once Close returns no more deltas are delivered. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.lock.Lock()
	if s.closing {
		s.lock.Unlock()
		<-s.doneCh
		return nil
	}
	s.closing = true
	close(s.stopCh)
	s.lock.Unlock()

	// Departure is announced before the transport goes away
	var leaveErr error
	if err := s.conn.Emit(model.LeaveListEvent, s.listId); err != nil {
		leaveErr = fmt.Errorf("%s: %w", model.LeaveListEvent, err)
	}
	closeErr := s.conn.Close()

	<-s.doneCh
	log.Printf("%s: closed", s.String())

	if leaveErr != nil {
		return leaveErr
	}
	if closeErr != nil {
		return fmt.Errorf("close: %w", closeErr)
	}

	return nil
}

// worker reads events and pushes decoded deltas to the stream.
func (s *Subscription) worker() {
	defer close(s.doneCh)
	defer close(s.deltasCh)

	for {
		e, err := s.conn.Receive()
		if err != nil {
			s.lock.Lock()
			if !s.closing {
				s.err = err
				if errors.Is(err, ErrClosed) {
					log.Printf("%s: closed by server", s.String())
				} else {
					log.Printf("%s: receive failed: %v", s.String(), err)
				}
			}
			s.lock.Unlock()
			return
		}

		delta, ok, err := model.DeltaFromEnvelope(e)
		if err != nil {
			log.Printf("%s: skipping malformed event: %v", s.String(), err)
			continue
		}
		if !ok {
			continue
		}

		select {
		case s.deltasCh <- delta:
		case <-s.stopCh:
			return
		}
	}
}

// Subscribe connects to the realtime channel and joins the list room.
func Subscribe(ctx context.Context, transport Transport, listId model.ListId) (*Subscription, error) {
	if transport == nil {
		return nil, fmt.Errorf("%s: nil", "transport")
	}
	if listId == "" {
		return nil, fmt.Errorf("%s: empty", "listId")
	}

	conn, err := transport.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := conn.Emit(model.JoinListEvent, listId); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", model.JoinListEvent, err)
	}

	s := &Subscription{
		listId:   listId,
		conn:     conn,
		deltasCh: make(chan model.Delta),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go s.worker()

	log.Printf("%s: joined", s.String())

	return s, nil
}
