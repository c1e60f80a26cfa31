package session

import (
	"fmt"
	"log"
	"sync"

	"github.com/dgrijalva/jwt-go"

	"github.com/itiky/synclist/model"
)

// UserIdClaim is the bearer token claim carrying the user id.
const UserIdClaim = "userId"

type (
	// Session keeps the authenticated user credential.
	// Created at app start, replaced on login, cleared on logout / expiry.
	Session struct {
		sync.RWMutex
		// State
		token      string
		userId     model.UserId
		name       string
		profilePic string
		generation int
		//
		store     TokenStore
		storeLock sync.Mutex // held across a state change and its TokenStore write
		observers []chan struct{}
	}

	// State is a read-only Session copy.
	State struct {
		Token      string
		UserId     model.UserId
		Name       string
		ProfilePic string
		Generation int
	}
)

// String implements the stringer interface.
func (s *Session) String() string {
	return "Session"
}

// Login replaces the session credential.
func (s *Session) Login(token, name, profilePic string) error {
	userId, err := UserIdFromToken(token)
	if err != nil {
		return err
	}

	s.storeLock.Lock()
	s.Lock()
	s.token, s.userId = token, userId
	s.name, s.profilePic = name, profilePic
	s.generation++
	state := s.state()
	s.Unlock()

	if s.store != nil {
		if err := s.store.Save(state); err != nil {
			log.Printf("%s: token save failed: %v", s.String(), err)
		}
	}
	s.storeLock.Unlock()
	s.notify()

	return nil
}

// Invalidate clears the credential returning the user to an unauthenticated state.
// No-op for an already cleared session.
func (s *Session) Invalidate() {
	s.invalidate(-1)
}

// Expire invalidates the session only if the credential of the given generation is still in use,
// so a late authorization failure of a request sent with an old credential can not log out a newer login.
// Returns true if the session was invalidated.
func (s *Session) Expire(generation int) bool {
	return s.invalidate(generation)
}

func (s *Session) invalidate(generation int) bool {
	s.storeLock.Lock()
	s.Lock()
	if s.token == "" || (generation >= 0 && generation != s.generation) {
		s.Unlock()
		s.storeLock.Unlock()
		return false
	}
	s.token, s.userId, s.name, s.profilePic = "", "", "", ""
	s.generation++
	s.Unlock()

	if s.store != nil {
		if err := s.store.Delete(); err != nil {
			log.Printf("%s: token delete failed: %v", s.String(), err)
		}
	}
	s.storeLock.Unlock()
	log.Printf("%s: invalidated", s.String())
	s.notify()

	return true
}

// Restore loads a previously saved credential from the TokenStore.
// Returns false if there is nothing to restore.
func (s *Session) Restore() (bool, error) {
	if s.store == nil {
		return false, nil
	}

	s.storeLock.Lock()
	defer s.storeLock.Unlock()

	state, found, err := s.store.Load()
	if err != nil {
		return false, fmt.Errorf("token store: %w", err)
	}
	if !found {
		return false, nil
	}

	userId, err := UserIdFromToken(state.Token)
	if err != nil {
		return false, err
	}

	s.Lock()
	s.token, s.userId = state.Token, userId
	s.name, s.profilePic = state.Name, state.ProfilePic
	s.generation++
	s.Unlock()

	s.notify()

	return true, nil
}

// Token returns the bearer credential if authenticated.
func (s *Session) Token() (string, bool) {
	s.RLock()
	defer s.RUnlock()

	return s.token, s.token != ""
}

// UserId returns the authenticated user id (empty if not authenticated).
func (s *Session) UserId() model.UserId {
	s.RLock()
	defer s.RUnlock()

	return s.userId
}

// IsAuthenticated checks if the session has a credential.
func (s *Session) IsAuthenticated() bool {
	_, ok := s.Token()
	return ok
}

// State returns the current session state.
func (s *Session) State() State {
	s.RLock()
	defer s.RUnlock()

	return s.state()
}

// Changes returns a channel notified on every login / invalidation.
// Notifications are coalesced: the channel has a single slot.
func (s *Session) Changes() <-chan struct{} {
	ch := make(chan struct{}, 1)

	s.Lock()
	s.observers = append(s.observers, ch)
	s.Unlock()

	return ch
}

func (s *Session) state() State {
	return State{
		Token:      s.token,
		UserId:     s.userId,
		Name:       s.name,
		ProfilePic: s.profilePic,
		Generation: s.generation,
	}
}

func (s *Session) notify() {
	s.RLock()
	defer s.RUnlock()

	for _, ch := range s.observers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// UserIdFromToken decodes the user id claim without verifying the token signature.
// Verification is the server's job: the client only needs the id to tell own lists / claims apart.
func UserIdFromToken(token string) (model.UserId, error) {
	if token == "" {
		return "", fmt.Errorf("%s: empty", "token")
	}

	claims := jwt.MapClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("token decode: %w", err)
	}

	userId, ok := claims[UserIdClaim].(string)
	if !ok || userId == "" {
		return "", fmt.Errorf("token decode: %s claim: missing", UserIdClaim)
	}

	return model.UserId(userId), nil
}

// NewSession creates a new empty Session object.
// TokenStore is optional.
func NewSession(store TokenStore) *Session {
	return &Session{
		store: store,
	}
}
