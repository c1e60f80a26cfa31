package listsync

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itiky/synclist/model"
	"github.com/itiky/synclist/service/client"
	"github.com/itiky/synclist/service/realtime"
	"github.com/itiky/synclist/service/server"
	"github.com/itiky/synclist/session"
	"github.com/itiky/synclist/storage"
)

// Test runs two members against the dev server: one edits the list, the other one follows it live.
func Test_Unit_EndToEnd(t *testing.T) {
	tokens, err := server.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	svc, err := server.NewService(storage.NewStore(), tokens, "", time.Second)
	require.NoError(t, err)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	ctx := context.Background()
	newMember := func(name string) *client.Client {
		c, err := client.NewClient(srv.URL, session.NewSession(nil), testTimeout)
		require.NoError(t, err)
		require.NoError(t, c.Register(ctx, name, name+"@synclist.dev", "secret1"))
		require.NoError(t, c.Login(ctx, name+"@synclist.dev", "secret1"))
		return c
	}
	alice, bob := newMember("alice"), newMember("bob")

	require.NoError(t, alice.CreateList(ctx, "Groceries"))
	lists, err := alice.GetLists(ctx)
	require.NoError(t, err)
	listId := lists[0].Id
	_, err = bob.JoinList(ctx, listId)
	require.NoError(t, err)

	transport, err := realtime.NewWebsocketTransport(alice.BaseUrl(), alice.Session(), testTimeout)
	require.NoError(t, err)
	u, err := NewUnit(alice, transport, nil)
	require.NoError(t, err)
	defer u.Close()

	require.NoError(t, u.Subscribe(ctx, listId))
	require.NoError(t, u.Load(ctx, listId))
	require.Eventually(t, func() bool {
		return svc.Hub().RoomSize(listId) == 1
	}, testTimeout, 5*time.Millisecond)

	require.NoError(t, bob.AddItem(ctx, listId, "Milk"))
	require.Eventually(t, func() bool {
		l, _ := u.Snapshot()
		return len(l.Items) == 1 && l.Items[0].Name == "Milk"
	}, testTimeout, 5*time.Millisecond)

	l, _ := u.Snapshot()
	milkId := l.Items[0].Id
	require.NoError(t, bob.ClaimItem(ctx, milkId))
	require.Eventually(t, func() bool {
		l, _ := u.Snapshot()
		return len(l.Items) == 1 && l.Items[0].ClaimStateFor(alice.Session().UserId()) == model.ClaimedByOther
	}, testTimeout, 5*time.Millisecond)

	// own intent comes back as a delta
	require.NoError(t, u.DeleteItem(ctx, milkId))
	require.Eventually(t, func() bool {
		l, _ := u.Snapshot()
		return len(l.Items) == 0
	}, testTimeout, 5*time.Millisecond)

	require.NoError(t, u.Unsubscribe())
	require.Eventually(t, func() bool {
		return svc.Hub().RoomSize(listId) == 0
	}, testTimeout, 5*time.Millisecond)
}
