package server

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/itiky/synclist/model"
	"github.com/itiky/synclist/service/realtime"
	"github.com/itiky/synclist/storage"
)

const testTimeout = 5 * time.Second

type testEnv struct {
	t      *testing.T
	svc    *Service
	tokens *TokenIssuer
	srv    *httptest.Server
}

func newTestEnv(t *testing.T, filePath string) *testEnv {
	tokens, err := NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	svc, err := NewService(storage.NewStore(), tokens, filePath, 50*time.Millisecond)
	require.NoError(t, err)

	srv := httptest.NewServer(svc.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{t: t, svc: svc, tokens: tokens, srv: srv}
}

// user creates a user returning its id and token.
func (e *testEnv) user(name string) (model.UserId, string) {
	user, err := e.svc.Store().CreateUser(name, name+"@synclist.dev", "secret1", time.Now())
	require.NoError(e.t, err)

	token, err := e.tokens.Issue(user.Id)
	require.NoError(e.t, err)

	return user.Id, token
}

// do sends a JSON request and decodes the response into resBody (if not nil).
func (e *testEnv) do(method, path, token string, reqBody, resBody interface{}) int {
	var body *bytes.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		require.NoError(e.t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(e.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(e.t, err)
	defer res.Body.Close()

	raw, err := ioutil.ReadAll(res.Body)
	require.NoError(e.t, err)
	if resBody != nil {
		require.NoError(e.t, json.Unmarshal(raw, resBody), string(raw))
	}

	return res.StatusCode
}

func (e *testEnv) message(method, path, token string, reqBody interface{}) (int, string) {
	msg := model.MessageResponse{}
	status := e.do(method, path, token, reqBody, &msg)

	return status, msg.Message
}

func Test_Service_Auth(t *testing.T) {
	e := newTestEnv(t, "")

	status, msg := e.message(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, msg)

	registerReq := model.RegisterRequest{Username: "alice", Email: "alice@synclist.dev", Password: "secret1"}
	status, _ = e.message(http.MethodPost, "/api/auth/register", "", registerReq)
	require.Equal(t, http.StatusCreated, status)

	status, msg = e.message(http.MethodPost, "/api/auth/register", "", registerReq)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Email: already registered", msg)

	status, msg = e.message(http.MethodPost, "/api/auth/login", "", model.LoginRequest{Email: "alice@synclist.dev", Password: "wrong"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Invalid email or password", msg)

	loginRes := model.LoginResponse{}
	status = e.do(http.MethodPost, "/api/auth/login", "", model.LoginRequest{Email: "Alice@synclist.dev", Password: "secret1"}, &loginRes)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, loginRes.Token)
	require.Equal(t, "alice", loginRes.Name)

	profileRes := model.ProfileResponse{}
	status = e.do(http.MethodGet, "/api/auth/", loginRes.Token, nil, &profileRes)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "alice", profileRes.User.Username)
	require.Equal(t, "alice@synclist.dev", profileRes.User.Email)

	// missing / forged / expired credentials
	status, _ = e.message(http.MethodGet, "/api/auth/", "", nil)
	require.Equal(t, http.StatusForbidden, status)

	forger, err := NewTokenIssuer("other-secret", time.Hour)
	require.NoError(t, err)
	forged, err := forger.Issue(profileRes.User.Id)
	require.NoError(t, err)
	status, _ = e.message(http.MethodGet, "/api/list/", forged, nil)
	require.Equal(t, http.StatusForbidden, status)

	e.tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := e.tokens.Issue(profileRes.User.Id)
	require.NoError(t, err)
	status, _ = e.message(http.MethodGet, "/api/list/", expired, nil)
	require.Equal(t, http.StatusForbidden, status)
}

func Test_Service_Lists(t *testing.T) {
	e := newTestEnv(t, "")
	aliceId, alice := e.user("alice")
	_, bob := e.user("bob")

	status, msg := e.message(http.MethodPost, "/api/list/", alice, model.CreateListRequest{Name: "  "})
	require.Equal(t, http.StatusBadRequest, status)
	require.NotEmpty(t, msg)

	list := model.ListSummary{}
	status = e.do(http.MethodPost, "/api/list/", alice, model.CreateListRequest{Name: "Groceries"}, &list)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, list.Id)
	require.Equal(t, aliceId, list.Owner)

	// non-members do not see the list
	status, _ = e.message(http.MethodGet, "/api/item/"+string(list.Id), bob, nil)
	require.Equal(t, http.StatusNotFound, status)

	status, msg = e.message(http.MethodPost, "/api/list/"+string(list.Id)+"/join", bob, nil)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Successfully joined the list.", msg)

	status, _ = e.message(http.MethodPost, "/api/list/"+string(list.Id)+"/join", bob, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status, _ = e.message(http.MethodPost, "/api/list/unknown/join", bob, nil)
	require.Equal(t, http.StatusNotFound, status)

	listsRes := model.GetListsResponse{}
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/list/", bob, nil, &listsRes))
	require.Equal(t, []model.ListSummary{list}, listsRes.Lists)

	snapshot := model.ListSnapshot{}
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/item/"+string(list.Id), bob, nil, &snapshot))
	require.Equal(t, list.Id, snapshot.Id)
	require.Len(t, snapshot.Members, 2)
	require.Equal(t, "alice", snapshot.Members[0].Username)
	require.NotNil(t, snapshot.Items)

	status, msg = e.message(http.MethodDelete, "/api/list/"+string(list.Id), bob, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Only the owner can delete the list", msg)

	status, _ = e.message(http.MethodDelete, "/api/list/"+string(list.Id), alice, nil)
	require.Equal(t, http.StatusOK, status)

	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/list/", alice, nil, &listsRes))
	require.Empty(t, listsRes.Lists)
}

func Test_Service_Items(t *testing.T) {
	e := newTestEnv(t, "")
	_, alice := e.user("alice")
	bobId, bob := e.user("bob")

	list := model.ListSummary{}
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/list/", alice, model.CreateListRequest{Name: "Groceries"}, &list))
	status, _ := e.message(http.MethodPost, "/api/list/"+string(list.Id)+"/join", bob, nil)
	require.Equal(t, http.StatusOK, status)

	item := model.Item{}
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/item/", alice, model.AddItemRequest{ListId: list.Id, Name: "Milk"}, &item))
	require.NotEmpty(t, item.Id)
	require.False(t, item.Claimed)

	// claim toggle
	require.Equal(t, http.StatusOK, e.do(http.MethodPut, "/api/item/claim/"+string(item.Id), bob, nil, &item))
	require.True(t, item.Claimed)
	require.Equal(t, bobId, item.ClaimedBy.Id)
	require.Equal(t, "bob", item.ClaimedBy.Username)

	status, msg := e.message(http.MethodPut, "/api/item/claim/"+string(item.Id), alice, nil)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Item already claimed", msg)

	unclaimed := model.Item{}
	require.Equal(t, http.StatusOK, e.do(http.MethodPut, "/api/item/claim/"+string(item.Id), bob, nil, &unclaimed))
	require.Equal(t, item.Id, unclaimed.Id)
	require.False(t, unclaimed.Claimed)
	require.Nil(t, unclaimed.ClaimedBy)

	status, _ = e.message(http.MethodDelete, "/api/item/"+string(item.Id), alice, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = e.message(http.MethodDelete, "/api/item/"+string(item.Id), alice, nil)
	require.Equal(t, http.StatusNotFound, status)

	snapshot := model.ListSnapshot{}
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/item/"+string(list.Id), alice, nil, &snapshot))
	require.Empty(t, snapshot.Items)

	status, _ = e.message(http.MethodPost, "/api/item/", alice, model.AddItemRequest{ListId: "unknown", Name: "Milk"})
	require.Equal(t, http.StatusNotFound, status)
}

// Test joins a list room over the websocket and receives the item mutations.
func Test_Service_Realtime(t *testing.T) {
	e := newTestEnv(t, "")
	_, alice := e.user("alice")
	_, bob := e.user("bob")

	list := model.ListSummary{}
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/list/", alice, model.CreateListRequest{Name: "Groceries"}, &list))

	wsUrl := "ws" + strings.TrimPrefix(e.srv.URL, "http") + realtime.SocketPath

	// no credential
	_, res, err := websocket.DefaultDialer.Dial(wsUrl, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusForbidden, res.StatusCode)

	dial := func(token string) *websocket.Conn {
		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)
		conn, _, err := websocket.DefaultDialer.Dial(wsUrl, header)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	emit := func(conn *websocket.Conn, event string) {
		env, err := model.NewEnvelope(event, list.Id)
		require.NoError(t, err)
		require.NoError(t, conn.WriteJSON(env))
	}

	// bob is not a member: the join is ignored
	bobConn := dial(bob)
	emit(bobConn, model.JoinListEvent)

	aliceConn := dial(alice)
	emit(aliceConn, model.JoinListEvent)
	require.Eventually(t, func() bool {
		return e.svc.Hub().RoomSize(list.Id) == 1
	}, testTimeout, 5*time.Millisecond)

	item := model.Item{}
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/item/", alice, model.AddItemRequest{ListId: list.Id, Name: "Milk"}, &item))

	aliceConn.SetReadDeadline(time.Now().Add(testTimeout))
	env := model.Envelope{}
	require.NoError(t, aliceConn.ReadJSON(&env))
	delta, ok, err := model.DeltaFromEnvelope(env)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.NewItemAddedDelta(item), delta)

	emit(aliceConn, model.LeaveListEvent)
	require.Eventually(t, func() bool {
		return e.svc.Hub().RoomSize(list.Id) == 0
	}, testTimeout, 5*time.Millisecond)
}

func Test_Service_Persist(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "store.dat")
	e := newTestEnv(t, filePath)
	e.svc.Start()

	status, _ := e.message(http.MethodPost, "/api/auth/register", "", model.RegisterRequest{Username: "alice", Email: "alice@synclist.dev", Password: "secret1"})
	require.Equal(t, http.StatusCreated, status)

	e.svc.Stop()
	// repeated Stop is a no-op
	e.svc.Stop()

	store, err := storage.NewStoreFromFile(filePath)
	require.NoError(t, err)
	user, err := store.Authenticate("alice@synclist.dev", "secret1")
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
}

func Test_TokenIssuer(t *testing.T) {
	_, err := NewTokenIssuer("", time.Hour)
	require.Error(t, err)
	_, err = NewTokenIssuer("secret", 0)
	require.Error(t, err)

	issuer, err := NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	token, err := issuer.Issue("u1")
	require.NoError(t, err)
	userId, err := issuer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, model.UserId("u1"), userId)

	_, err = issuer.Verify("garbage")
	require.ErrorIs(t, err, ErrInvalidToken)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err = issuer.VerifyRequest(req)
	require.ErrorIs(t, err, ErrInvalidToken)
	req.Header.Set("Authorization", "Bearer "+token)
	userId, err = issuer.VerifyRequest(req)
	require.NoError(t, err)
	require.Equal(t, model.UserId("u1"), userId)
}
