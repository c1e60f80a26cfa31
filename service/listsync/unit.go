package listsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/itiky/synclist/model"
	"github.com/itiky/synclist/service/client"
	"github.com/itiky/synclist/service/realtime"
)

// ErrClosed is returned by Unit operations after Close.
var ErrClosed = errors.New("sync unit closed")

type (
	// ListApi is the Remote List Store used by Unit.
	ListApi interface {
		GetList(ctx context.Context, id model.ListId) (model.ListSnapshot, error)
		AddItem(ctx context.Context, listId model.ListId, name string) error
		DeleteItem(ctx context.Context, id model.ItemId) error
		ClaimItem(ctx context.Context, id model.ItemId) error
	}

	// FetchFailedError is a non-auth snapshot fetch failure; the snapshot is left unchanged.
	FetchFailedError struct {
		ListId model.ListId
		// User displayable message
		Message string
		Err     error
	}

	// ChannelError is a realtime channel failure reported via Unit.Errors.
	// There is no reconnection: the snapshot may drift until the next Load.
	ChannelError struct {
		ListId model.ListId
		Err    error
	}

	// roomDelta is a buffered delta tagged with the room it was received from.
	roomDelta struct {
		listId model.ListId
		delta  model.Delta
	}
)

// Error implements the error interface.
func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("list %s: fetch failed: %s", e.ListId, e.Message)
}

// Unwrap returns the underlying error.
func (e *FetchFailedError) Unwrap() error {
	return e.Err
}

// Error implements the error interface.
func (e *ChannelError) Error() string {
	return fmt.Sprintf("list %s: realtime channel: %v", e.ListId, e.Err)
}

// Unwrap returns the underlying error.
func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Unit keeps one consistent ListSnapshot for the list currently open on screen
// reconciling REST snapshots with the realtime delta stream.
// Every snapshot mutation happens under the Unit lock, the view only reads copies.
type Unit struct {
	sync.Mutex
	// Config
	api       ListApi
	transport realtime.Transport
	// State
	snapshot model.ListSnapshot
	loaded   bool
	sub      *realtime.Subscription
	closed   bool
	// Deltas received while snapshot fetches are in flight, replayed on top of the fetched snapshot
	loadsInFlight int
	replay        []roomDelta
	//
	subLock   sync.Mutex // serializes room membership changes
	monitor   *Monitor
	changesCh chan struct{}
	errorsCh  chan error
}

// String implements the stringer interface.
func (u *Unit) String() string {
	return "SyncUnit"
}

// Load fetches the list snapshot and replaces the current one.
// Auth expiry (the session is already invalidated) and other failures leave the snapshot unchanged.
func (u *Unit) Load(ctx context.Context, listId model.ListId) error {
	u.Lock()
	if u.closed {
		u.Unlock()
		return ErrClosed
	}
	u.loadsInFlight++
	replayStart := len(u.replay)
	u.Unlock()

	opStart := time.Now()
	snapshot, err := u.api.GetList(ctx, listId)
	opDur := time.Since(opStart)

	u.Lock()
	defer u.Unlock()

	replay := u.replay[replayStart:]
	u.loadsInFlight--
	if u.loadsInFlight == 0 {
		u.replay = nil
	}

	if u.closed {
		log.Printf("%s: list %s: dropping snapshot fetched after close", u.String(), listId)
		return ErrClosed
	}

	if err != nil {
		u.monitor.LoadFailed()
		if client.IsAuthExpired(err) {
			return err
		}
		return &FetchFailedError{ListId: listId, Message: client.DisplayMessage(err), Err: err}
	}

	snapshot = snapshot.Copy()
	applied := 0
	if u.sub != nil && u.sub.ListId() == listId {
		deltas := make([]model.Delta, 0, len(replay))
		for _, rd := range replay {
			if rd.listId == listId {
				deltas = append(deltas, rd.delta)
			}
		}
		snapshot, applied = model.ApplyDeltas(snapshot, deltas...)
	}

	u.snapshot, u.loaded = snapshot, true
	u.monitor.Loaded(opDur)
	log.Printf("%s: list %s: snapshot loaded: %d items within %v (%d replayed)", u.String(), listId, len(snapshot.Items), opDur, applied)
	u.notify()

	return nil
}

// Refresh reloads the current snapshot.
func (u *Unit) Refresh(ctx context.Context) error {
	listId := u.ListId()
	if listId == "" {
		return fmt.Errorf("%s: nothing to refresh", u.String())
	}

	return u.Load(ctx, listId)
}

// Subscribe joins the list realtime room.
// The same room is a no-op, a different one is left before joining the new one:
// at most one room membership exists at any time.
func (u *Unit) Subscribe(ctx context.Context, listId model.ListId) error {
	u.subLock.Lock()
	defer u.subLock.Unlock()

	u.Lock()
	if u.closed {
		u.Unlock()
		return ErrClosed
	}
	if u.sub != nil && u.sub.ListId() == listId && !isDone(u.sub) {
		u.Unlock()
		return nil
	}
	oldSub := u.sub
	u.sub = nil
	u.Unlock()

	if oldSub != nil {
		if err := oldSub.Close(); err != nil {
			log.Printf("%s: list %s: leave: %v", u.String(), oldSub.ListId(), err)
		}
	}

	sub, err := realtime.Subscribe(ctx, u.transport, listId)
	if err != nil {
		return fmt.Errorf("list %s: subscribe: %w", listId, err)
	}

	u.Lock()
	u.sub = sub
	u.Unlock()

	go u.pump(sub)

	return nil
}

// Unsubscribe leaves the current room and closes the connection.
// No delta is applied once Unsubscribe returns. Safe to call on every exit path.
func (u *Unit) Unsubscribe() error {
	u.subLock.Lock()
	defer u.subLock.Unlock()

	u.Lock()
	sub := u.sub
	u.sub = nil
	u.Unlock()

	if sub == nil {
		return nil
	}

	if err := sub.Close(); err != nil {
		return fmt.Errorf("list %s: unsubscribe: %w", sub.ListId(), err)
	}

	return nil
}

// Close releases the room membership and disposes the Unit: in-flight fetches settling later are dropped.
func (u *Unit) Close() error {
	u.subLock.Lock()
	defer u.subLock.Unlock()

	u.Lock()
	if u.closed {
		u.Unlock()
		return nil
	}
	u.closed = true
	sub := u.sub
	u.sub = nil
	u.Unlock()

	u.monitor.Stop()

	if sub == nil {
		return nil
	}
	if err := sub.Close(); err != nil {
		return fmt.Errorf("list %s: unsubscribe: %w", sub.ListId(), err)
	}

	return nil
}

// ApplyDelta applies a delta to the current snapshot returning whether anything changed.
// Deltas without a loaded snapshot are ignored.
func (u *Unit) ApplyDelta(d model.Delta) bool {
	u.Lock()
	defer u.Unlock()

	if u.closed {
		return false
	}

	return u.applyDelta(d)
}

// Snapshot returns the current snapshot copy and whether it was loaded.
func (u *Unit) Snapshot() (model.ListSnapshot, bool) {
	u.Lock()
	defer u.Unlock()

	if !u.loaded {
		return model.ListSnapshot{}, false
	}

	return u.snapshot.Copy(), true
}

// ListId returns the loaded (or subscribed if nothing is loaded yet) list id.
func (u *Unit) ListId() model.ListId {
	u.Lock()
	defer u.Unlock()

	if u.loaded {
		return u.snapshot.Id
	}
	if u.sub != nil {
		return u.sub.ListId()
	}

	return ""
}

// SubscribedListId returns the current room id (empty if not subscribed).
func (u *Unit) SubscribedListId() model.ListId {
	u.Lock()
	defer u.Unlock()

	if u.sub == nil {
		return ""
	}

	return u.sub.ListId()
}

// Changes returns the snapshot change notification channel.
// Notifications are coalesced, the receiver reads the latest state via Snapshot.
func (u *Unit) Changes() <-chan struct{} {
	return u.changesCh
}

// Errors returns the realtime channel failures channel.
func (u *Unit) Errors() <-chan error {
	return u.errorsCh
}

// Monitor returns the Unit stats.
func (u *Unit) Monitor() *Monitor {
	return u.monitor
}

// AddItem forwards the add intent to the Remote List Store.
// The snapshot changes once the itemAdded delta arrives (or on the next Load).
func (u *Unit) AddItem(ctx context.Context, name string) error {
	listId := u.ListId()
	if listId == "" {
		return &client.ValidationError{Field: "listId", Message: "List is not selected"}
	}

	return u.api.AddItem(ctx, listId, name)
}

// DeleteItem forwards the delete intent to the Remote List Store.
func (u *Unit) DeleteItem(ctx context.Context, id model.ItemId) error {
	return u.api.DeleteItem(ctx, id)
}

// ToggleClaim forwards the claim / unclaim intent to the Remote List Store.
func (u *Unit) ToggleClaim(ctx context.Context, id model.ItemId) error {
	return u.api.ClaimItem(ctx, id)
}

// pump applies the subscription deltas until the stream is closed.
func (u *Unit) pump(sub *realtime.Subscription) {
	for d := range sub.Deltas() {
		u.Lock()
		if u.sub == sub && !u.closed {
			if u.loadsInFlight > 0 {
				u.replay = append(u.replay, roomDelta{listId: sub.ListId(), delta: d})
			}
			if u.loaded && u.snapshot.Id == sub.ListId() {
				u.applyDelta(d)
			} else {
				u.monitor.DeltaIgnored()
			}
		}
		u.Unlock()
	}

	<-sub.Done()
	err := sub.Err()
	if err == nil {
		return
	}

	u.Lock()
	current := u.sub == sub && !u.closed
	u.Unlock()

	if current {
		u.publishError(&ChannelError{ListId: sub.ListId(), Err: err})
	}
}

// applyDelta must be called under lock.
func (u *Unit) applyDelta(d model.Delta) bool {
	if !u.loaded {
		u.monitor.DeltaIgnored()
		return false
	}

	snapshot, changed := model.ApplyDelta(u.snapshot, d)
	if !changed {
		u.monitor.DeltaIgnored()
		return false
	}

	u.snapshot = snapshot
	u.monitor.DeltaApplied()
	u.notify()

	return true
}

func (u *Unit) notify() {
	select {
	case u.changesCh <- struct{}{}:
	default:
	}
}

func (u *Unit) publishError(err error) {
	select {
	case u.errorsCh <- err:
	default:
		log.Printf("%s: errors channel is full, dropping: %v", u.String(), err)
	}
}

func isDone(sub *realtime.Subscription) bool {
	select {
	case <-sub.Done():
		return true
	default:
		return false
	}
}

// NewUnit creates a new Unit object.
// Monitor is optional.
func NewUnit(api ListApi, transport realtime.Transport, monitor *Monitor) (*Unit, error) {
	if api == nil {
		return nil, fmt.Errorf("%s: nil", "api")
	}
	if transport == nil {
		return nil, fmt.Errorf("%s: nil", "transport")
	}
	if monitor == nil {
		monitor = NewMonitor(0)
	}

	return &Unit{
		api:       api,
		transport: transport,
		monitor:   monitor,
		changesCh: make(chan struct{}, 1),
		errorsCh:  make(chan error, 8),
	}, nil
}
