package session

import (
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/require"

	"github.com/itiky/synclist/model"
)

func newTestToken(t *testing.T, userId string) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		UserIdClaim: userId,
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	return token
}

func Test_Session_Lifecycle(t *testing.T) {
	s := NewSession(nil)
	changesCh := s.Changes()

	_, ok := s.Token()
	require.False(t, ok)
	require.False(t, s.IsAuthenticated())

	token := newTestToken(t, "u1")
	require.NoError(t, s.Login(token, "alice", "pic.png"))
	<-changesCh

	curToken, ok := s.Token()
	require.True(t, ok)
	require.Equal(t, token, curToken)
	require.Equal(t, model.UserId("u1"), s.UserId())
	require.Equal(t, "alice", s.State().Name)
	require.Equal(t, 1, s.State().Generation)

	s.Invalidate()
	<-changesCh
	require.False(t, s.IsAuthenticated())
	require.Empty(t, s.UserId())
	require.Equal(t, 2, s.State().Generation)

	// repeated invalidation is a no-op
	s.Invalidate()
	require.Equal(t, 2, s.State().Generation)
	select {
	case <-changesCh:
		t.Fatal("unexpected change notification")
	default:
	}
}

func Test_Session_InvalidToken(t *testing.T) {
	s := NewSession(nil)

	require.Error(t, s.Login("", "alice", ""))
	require.Error(t, s.Login("not-a-jwt", "alice", ""))

	noClaim, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("x"))
	require.NoError(t, err)
	require.Error(t, s.Login(noClaim, "alice", ""))

	require.False(t, s.IsAuthenticated())
}

func Test_Session_FileStore(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "token.json"))
	require.NoError(t, err)

	// nothing to restore yet
	restored, err := NewSession(store).Restore()
	require.NoError(t, err)
	require.False(t, restored)

	token := newTestToken(t, "u2")
	require.NoError(t, NewSession(store).Login(token, "bob", ""))

	s := NewSession(store)
	restored, err = s.Restore()
	require.NoError(t, err)
	require.True(t, restored)
	require.Equal(t, model.UserId("u2"), s.UserId())
	require.Equal(t, "bob", s.State().Name)

	s.Invalidate()
	restored, err = NewSession(store).Restore()
	require.NoError(t, err)
	require.False(t, restored)
}

// memoryStore is a TokenStore yielding between the call and the write to widen race windows.
type memoryStore struct {
	sync.Mutex
	state *State
}

func (s *memoryStore) Save(state State) error {
	runtime.Gosched()
	s.Lock()
	defer s.Unlock()
	s.state = &state

	return nil
}

func (s *memoryStore) Load() (State, bool, error) {
	s.Lock()
	defer s.Unlock()
	if s.state == nil {
		return State{}, false, nil
	}

	return *s.state, true, nil
}

func (s *memoryStore) Delete() error {
	runtime.Gosched()
	s.Lock()
	defer s.Unlock()
	s.state = nil

	return nil
}

// Test checks the persisted credential always matches the session after concurrent logins and expiries.
func Test_Session_ConcurrentPersist(t *testing.T) {
	store := &memoryStore{}
	s := NewSession(store)
	token := newTestToken(t, "u1")

	for i := 0; i < 200; i++ {
		require.NoError(t, s.Login(token, "alice", ""))
		gen := s.State().Generation

		wg := sync.WaitGroup{}
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Expire(gen)
		}()
		go func() {
			defer wg.Done()
			_ = s.Login(token, "alice", "")
		}()
		wg.Wait()

		persisted, found, err := store.Load()
		require.NoError(t, err)
		require.Equal(t, s.IsAuthenticated(), found)
		if found {
			require.Equal(t, token, persisted.Token)
		}
	}
}

func Test_Session_Expire(t *testing.T) {
	s := NewSession(nil)

	require.NoError(t, s.Login(newTestToken(t, "u1"), "alice", ""))
	oldGen := s.State().Generation

	// re-login before the stale request failure arrives
	require.NoError(t, s.Login(newTestToken(t, "u1"), "alice", ""))
	require.False(t, s.Expire(oldGen))
	require.True(t, s.IsAuthenticated())

	require.True(t, s.Expire(s.State().Generation))
	require.False(t, s.IsAuthenticated())
}
