package realtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/itiky/synclist/model"
)

const testTimeout = 5 * time.Second

func receiveDelta(t *testing.T, s *Subscription) model.Delta {
	t.Helper()

	select {
	case d, ok := <-s.Deltas():
		require.True(t, ok, "deltas channel closed")
		return d
	case <-time.After(testTimeout):
		t.Fatal("delta timeout")
	}

	return model.Delta{}
}

func Test_Subscription_JoinLeave(t *testing.T) {
	transport := &MockTransport{}

	s, err := Subscribe(context.Background(), transport, "listA")
	require.NoError(t, err)
	require.Equal(t, model.ListId("listA"), s.ListId())
	require.Equal(t, []string{`joinList:"listA"`}, transport.EmittedEvents())

	require.NoError(t, s.Close())
	require.Equal(t, []string{`joinList:"listA"`, `leaveList:"listA"`}, transport.EmittedEvents())
	require.True(t, transport.Last().IsClosed())
	require.NoError(t, s.Err())

	// closed stream
	_, ok := <-s.Deltas()
	require.False(t, ok)

	// repeated Close is a no-op
	require.NoError(t, s.Close())
	require.Len(t, transport.EmittedEvents(), 2)
}

func Test_Subscription_Deltas(t *testing.T) {
	transport := &MockTransport{}

	s, err := Subscribe(context.Background(), transport, "listA")
	require.NoError(t, err)
	defer s.Close()

	conn := transport.Last()
	item := model.Item{Id: "i1", Name: "Milk"}

	require.NoError(t, conn.PushDelta(model.NewItemAddedDelta(item)))
	// unknown and malformed events are skipped
	conn.Push(model.Envelope{Event: "listRenamed"})
	conn.Push(model.Envelope{Event: "itemUpdated", Data: []byte(`42`)})
	require.NoError(t, conn.PushDelta(model.NewItemDeletedDelta("i1")))

	require.Equal(t, model.NewItemAddedDelta(item), receiveDelta(t, s))
	require.Equal(t, model.NewItemDeletedDelta("i1"), receiveDelta(t, s))
}

func Test_Subscription_ConnectionDrop(t *testing.T) {
	transport := &MockTransport{}

	s, err := Subscribe(context.Background(), transport, "listA")
	require.NoError(t, err)

	dropErr := errors.New("connection reset")
	transport.Last().Fail(dropErr)

	select {
	case <-s.Done():
	case <-time.After(testTimeout):
		t.Fatal("pump did not stop")
	}
	_, ok := <-s.Deltas()
	require.False(t, ok)
	require.Equal(t, dropErr, s.Err())
}

func Test_Subscription_ConnectFailure(t *testing.T) {
	transport := &MockTransport{ConnectErr: errors.New("refused")}

	_, err := Subscribe(context.Background(), transport, "listA")
	require.Error(t, err)

	_, err = Subscribe(context.Background(), &MockTransport{}, "")
	require.Error(t, err)
}

func Test_SocketUrl(t *testing.T) {
	u, err := url.Parse("https://api.synclist.dev/prefix")
	require.NoError(t, err)
	socketUrl, err := SocketUrl(u)
	require.NoError(t, err)
	require.Equal(t, "wss://api.synclist.dev/prefix/socket", socketUrl)

	u, err = url.Parse("http://127.0.0.1:3000")
	require.NoError(t, err)
	socketUrl, err = SocketUrl(u)
	require.NoError(t, err)
	require.Equal(t, "ws://127.0.0.1:3000/socket", socketUrl)

	u, err = url.Parse("ftp://host")
	require.NoError(t, err)
	_, err = SocketUrl(u)
	require.Error(t, err)
}

// Test runs the Subscription over a real websocket: the server records room events and pushes a delta on join.
func Test_WebsocketTransport(t *testing.T) {
	eventsCh := make(chan model.Envelope, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != SocketPath {
			http.NotFound(w, r)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			e := model.Envelope{}
			if err := conn.ReadJSON(&e); err != nil {
				return
			}
			eventsCh <- e

			if e.Event == model.JoinListEvent {
				out, _ := model.EnvelopeFromDelta(model.NewItemDeletedDelta("i9"))
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			}
		}
	}))
	defer srv.Close()

	apiUrl, err := url.Parse(srv.URL)
	require.NoError(t, err)
	transport, err := NewWebsocketTransport(apiUrl, nil, testTimeout)
	require.NoError(t, err)

	s, err := Subscribe(context.Background(), transport, "listA")
	require.NoError(t, err)

	require.Equal(t, model.NewItemDeletedDelta("i9"), receiveDelta(t, s))
	require.NoError(t, s.Close())

	join := <-eventsCh
	require.Equal(t, model.JoinListEvent, join.Event)
	require.JSONEq(t, `"listA"`, string(join.Data))
	leave := <-eventsCh
	require.Equal(t, model.LeaveListEvent, leave.Event)
	require.JSONEq(t, `"listA"`, string(leave.Data))
}

// Test skips a frame which is not a valid event and keeps delivering the following ones.
func Test_WebsocketTransport_MalformedFrame(t *testing.T) {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			e := model.Envelope{}
			if err := conn.ReadJSON(&e); err != nil {
				return
			}
			if e.Event != model.JoinListEvent {
				continue
			}

			if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
				return
			}
			out, _ := model.EnvelopeFromDelta(model.NewItemDeletedDelta("i9"))
			if err := conn.WriteJSON(out); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	apiUrl, err := url.Parse(srv.URL)
	require.NoError(t, err)
	transport, err := NewWebsocketTransport(apiUrl, nil, testTimeout)
	require.NoError(t, err)

	s, err := Subscribe(context.Background(), transport, "listA")
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, model.NewItemDeletedDelta("i9"), receiveDelta(t, s))
	require.NoError(t, s.Err())
}
