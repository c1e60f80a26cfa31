package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/itiky/synclist/model"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrNotPermitted = errors.New("not permitted")
	ErrConflict     = errors.New("conflict")
	ErrInvalid      = errors.New("invalid input")
)

type (
	// Store keeps users, lists and their ItemStorage objects.
	Store struct {
		sync.RWMutex
		users      map[model.UserId]*User
		emailIndex map[string]model.UserId
		lists      map[model.ListId]*List
		// Item id to its list match
		itemLists map[string]model.ListId
	}

	List struct {
		Id        model.ListId
		Name      string
		Owner     model.UserId
		Members   []model.UserId
		CreatedAt time.Time
		items     *ItemStorage
	}
)

// String implements stringer interface.
func (l *List) String() string {
	return fmt.Sprintf("%s (%s)", l.Name, l.Id)
}

// IsMember checks if user is the owner or a joined member.
func (l *List) IsMember(userId model.UserId) bool {
	if l.Owner == userId {
		return true
	}
	for _, id := range l.Members {
		if id == userId {
			return true
		}
	}

	return false
}

// CreateUser registers a new user.
func (s *Store) CreateUser(username, email, password string, now time.Time) (User, error) {
	username, email = strings.TrimSpace(username), normalizeEmail(email)
	if username == "" {
		return User{}, fmt.Errorf("%w: %s: empty", ErrInvalid, "username")
	}
	if email == "" || !strings.Contains(email, "@") {
		return User{}, fmt.Errorf("%w: %s: invalid", ErrInvalid, "email")
	}
	if len(password) < 6 {
		return User{}, fmt.Errorf("%w: %s: must be at least 6 characters", ErrInvalid, "password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("bcrypt: %w", err)
	}

	s.Lock()
	defer s.Unlock()

	if _, found := s.emailIndex[email]; found {
		return User{}, fmt.Errorf("%w: %s: already registered", ErrConflict, "email")
	}

	user := &User{
		Id:           model.UserId(uuid.New().String()),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
	}
	s.users[user.Id] = user
	s.emailIndex[email] = user.Id

	return *user, nil
}

// Authenticate checks user credentials.
func (s *Store) Authenticate(email, password string) (User, error) {
	s.RLock()
	userId, found := s.emailIndex[normalizeEmail(email)]
	var user User
	if found {
		user = *s.users[userId]
	}
	s.RUnlock()

	if !found {
		return User{}, fmt.Errorf("%w: invalid credentials", ErrNotFound)
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return User{}, fmt.Errorf("%w: invalid credentials", ErrNotFound)
	}

	return user, nil
}

// User returns a user by id.
func (s *Store) User(id model.UserId) (User, error) {
	s.RLock()
	defer s.RUnlock()

	user, found := s.users[id]
	if !found {
		return User{}, fmt.Errorf("%w: user %s", ErrNotFound, id)
	}

	return *user, nil
}

// IsMember checks if userId is the owner or a joined member of the list.
func (s *Store) IsMember(userId model.UserId, listId model.ListId) bool {
	s.RLock()
	defer s.RUnlock()

	_, err := s.memberList(userId, listId)

	return err == nil
}

// CreateList creates a new list owned by userId.
func (s *Store) CreateList(userId model.UserId, name string, now time.Time) (model.ListSummary, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.ListSummary{}, fmt.Errorf("%w: %s: empty", ErrInvalid, "listName")
	}

	s.Lock()
	defer s.Unlock()

	if _, found := s.users[userId]; !found {
		return model.ListSummary{}, fmt.Errorf("%w: user %s", ErrNotFound, userId)
	}

	listId := model.ListId(uuid.New().String())
	list := &List{
		Id:        listId,
		Name:      name,
		Owner:     userId,
		Members:   make([]model.UserId, 0),
		CreatedAt: now,
		items:     NewItemStorage(listId),
	}
	s.lists[listId] = list

	return list.summary(), nil
}

// DeleteList deletes the list (owner only) alongside its items.
func (s *Store) DeleteList(userId model.UserId, listId model.ListId) error {
	s.Lock()
	defer s.Unlock()

	list, err := s.memberList(userId, listId)
	if err != nil {
		return err
	}
	if list.Owner != userId {
		return fmt.Errorf("%w: only the owner can delete the list", ErrNotPermitted)
	}

	for itemId := range list.items.idDataMatch {
		delete(s.itemLists, itemId)
	}
	delete(s.lists, listId)

	return nil
}

// JoinList adds userId to the list members.
func (s *Store) JoinList(userId model.UserId, listId model.ListId) (model.ListSummary, error) {
	s.Lock()
	defer s.Unlock()

	if _, found := s.users[userId]; !found {
		return model.ListSummary{}, fmt.Errorf("%w: user %s", ErrNotFound, userId)
	}
	list, found := s.lists[listId]
	if !found {
		return model.ListSummary{}, fmt.Errorf("%w: list %s", ErrNotFound, listId)
	}
	if list.IsMember(userId) {
		return model.ListSummary{}, fmt.Errorf("%w: already a member of the list", ErrConflict)
	}

	list.Members = append(list.Members, userId)

	return list.summary(), nil
}

// Lists returns lists the user owns or joined (oldest first).
func (s *Store) Lists(userId model.UserId) []model.ListSummary {
	s.RLock()
	defer s.RUnlock()

	lists := make([]*List, 0)
	for _, list := range s.lists {
		if list.IsMember(userId) {
			lists = append(lists, list)
		}
	}
	sort.Slice(lists, func(i, j int) bool {
		if lists[i].CreatedAt.Equal(lists[j].CreatedAt) {
			return lists[i].Id < lists[j].Id
		}
		return lists[i].CreatedAt.Before(lists[j].CreatedAt)
	})

	res := make([]model.ListSummary, 0, len(lists))
	for _, list := range lists {
		res = append(res, list.summary())
	}

	return res
}

// Snapshot returns the list snapshot for a member.
func (s *Store) Snapshot(userId model.UserId, listId model.ListId) (model.ListSnapshot, error) {
	s.RLock()
	defer s.RUnlock()

	list, err := s.memberList(userId, listId)
	if err != nil {
		return model.ListSnapshot{}, err
	}

	members := make([]model.Member, 0, len(list.Members)+1)
	for _, id := range append([]model.UserId{list.Owner}, list.Members...) {
		if user, found := s.users[id]; found {
			members = append(members, user.Member())
		}
	}

	return model.ListSnapshot{
		Id:      list.Id,
		Name:    list.Name,
		Owner:   list.Owner,
		Items:   list.items.Export(s.resolveClaimant),
		Members: members,
	}, nil
}

// AddItem adds a new item to the list returning the delta to broadcast.
func (s *Store) AddItem(userId model.UserId, listId model.ListId, name string, now time.Time) (model.Delta, error) {
	op, err := NewAddOperation(name, userId, now)
	if err != nil {
		return model.Delta{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	s.Lock()
	defer s.Unlock()

	list, err := s.memberList(userId, listId)
	if err != nil {
		return model.Delta{}, err
	}

	deltas := list.items.ApplyOperations(s.resolveClaimant, op)
	if len(deltas) != 1 {
		return model.Delta{}, fmt.Errorf("%w: item %s: not added", ErrConflict, op.GetId())
	}
	s.itemLists[op.GetId().String()] = listId

	return deltas[0], nil
}

// DeleteItem deletes an item returning its list id and the delta to broadcast.
func (s *Store) DeleteItem(userId model.UserId, itemId model.ItemId, now time.Time) (model.ListId, model.Delta, error) {
	op, err := NewDeleteOperation(string(itemId), userId, now)
	if err != nil {
		return "", model.Delta{}, fmt.Errorf("%w: item %s", ErrNotFound, itemId)
	}

	s.Lock()
	defer s.Unlock()

	list, err := s.itemList(userId, itemId)
	if err != nil {
		return "", model.Delta{}, err
	}

	deltas := list.items.ApplyOperations(s.resolveClaimant, op)
	if len(deltas) != 1 {
		return "", model.Delta{}, fmt.Errorf("%w: item %s", ErrNotFound, itemId)
	}

	return list.Id, deltas[0], nil
}

// ToggleClaim claims an unclaimed item or unclaims an item claimed by userId.
// Items claimed by other members can not be toggled.
func (s *Store) ToggleClaim(userId model.UserId, itemId model.ItemId, now time.Time) (model.ListId, model.Delta, error) {
	s.Lock()
	defer s.Unlock()

	list, err := s.itemList(userId, itemId)
	if err != nil {
		return "", model.Delta{}, err
	}

	item, found := list.items.Get(string(itemId))
	if !found {
		return "", model.Delta{}, fmt.Errorf("%w: item %s", ErrNotFound, itemId)
	}

	claimant, found := s.resolveClaimant(userId)
	if !found {
		claimant = model.Claimant{Id: userId}
	}
	toggled, err := model.ApplyClaimToggle(list.items.exportItem(item, s.resolveClaimant), claimant)
	if err != nil {
		return "", model.Delta{}, fmt.Errorf("%w: Item already claimed", ErrConflict)
	}

	var claimedBy model.UserId
	if toggled.ClaimedBy != nil {
		claimedBy = toggled.ClaimedBy.Id
	}

	op, err := NewClaimOperation(string(itemId), claimedBy, userId, now)
	if err != nil {
		return "", model.Delta{}, fmt.Errorf("%w: item %s", ErrNotFound, itemId)
	}

	deltas := list.items.ApplyOperations(s.resolveClaimant, op)
	if len(deltas) != 1 {
		return "", model.Delta{}, fmt.Errorf("%w: item %s", ErrNotFound, itemId)
	}

	return list.Id, deltas[0], nil
}

// memberList returns the list if userId is a member; non-members get ErrNotFound not to leak list existence.
// Must be called under lock.
func (s *Store) memberList(userId model.UserId, listId model.ListId) (*List, error) {
	list, found := s.lists[listId]
	if !found || !list.IsMember(userId) {
		return nil, fmt.Errorf("%w: list %s", ErrNotFound, listId)
	}

	return list, nil
}

// itemList returns the item's list if userId is a member.
// Must be called under lock.
func (s *Store) itemList(userId model.UserId, itemId model.ItemId) (*List, error) {
	listId, found := s.itemLists[string(itemId)]
	if !found {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, itemId)
	}

	list, err := s.memberList(userId, listId)
	if err != nil {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, itemId)
	}

	return list, nil
}

// resolveClaimant implements ClaimantResolver.
// Must be called under lock.
func (s *Store) resolveClaimant(id model.UserId) (model.Claimant, bool) {
	user, found := s.users[id]
	if !found {
		return model.Claimant{}, false
	}

	return user.Claimant(), true
}

func (l *List) summary() model.ListSummary {
	return model.ListSummary{
		Id:    l.Id,
		Name:  l.Name,
		Owner: l.Owner,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewStore creates a new empty Store object.
func NewStore() *Store {
	return &Store{
		users:      make(map[model.UserId]*User),
		emailIndex: make(map[string]model.UserId),
		lists:      make(map[model.ListId]*List),
		itemLists:  make(map[string]model.ListId),
	}
}
