package model

import (
	"fmt"
	"strings"
)

type (
	// ListSnapshot is an in-memory copy of one list's items and members.
	ListSnapshot struct {
		Id      ListId   `json:"_id"`
		Name    string   `json:"listName"`
		Owner   UserId   `json:"owner"`
		Items   []Item   `json:"items"`
		Members []Member `json:"members"`
	}

	// ListSummary is a list entry of the lists overview (no items).
	ListSummary struct {
		Id    ListId `json:"_id"`
		Name  string `json:"listName"`
		Owner UserId `json:"owner"`
	}

	Item struct {
		Id        ItemId    `json:"_id"`
		Name      string    `json:"itemName"`
		Claimed   bool      `json:"isClaimed"`
		ClaimedBy *Claimant `json:"claimedBy,omitempty"`
	}

	// Claimant references the member who claimed an Item.
	Claimant struct {
		Id        UserId `json:"_id"`
		Username  string `json:"username"`
		AvatarUrl string `json:"profilePictureUrl"`
	}

	Member struct {
		Id        UserId `json:"_id"`
		Username  string `json:"username"`
		AvatarUrl string `json:"profilePictureUrl"`
	}
)

// ClaimState describes an Item claim relative to the current user.
type ClaimState int

const (
	Unclaimed ClaimState = iota
	ClaimedByMe
	ClaimedByOther
)

// String implements the stringer interface.
func (s ClaimState) String() string {
	switch s {
	case Unclaimed:
		return "unclaimed"
	case ClaimedByMe:
		return "claimed by me"
	case ClaimedByOther:
		return "claimed"
	}

	return "unknown"
}

// String implements the stringer interface.
func (l ListSnapshot) String() string {
	str := strings.Builder{}
	str.WriteString(fmt.Sprintf("%s (%s): %d items, %d members\n", l.Name, l.Id, len(l.Items), len(l.Members)))
	for i, item := range l.Items {
		str.WriteString(fmt.Sprintf("- [%d] %s\n", i, item.String()))
	}

	return str.String()
}

// Copy returns a deep copy, so the caller can not mutate the source via shared slices.
func (l ListSnapshot) Copy() ListSnapshot {
	c := l
	if l.Items != nil {
		c.Items = make([]Item, 0, len(l.Items))
		for _, item := range l.Items {
			c.Items = append(c.Items, item.Copy())
		}
	}
	if l.Members != nil {
		c.Members = make([]Member, len(l.Members))
		copy(c.Members, l.Members)
	}

	return c
}

// IndexOf returns the Item index by id or -1 if not found.
func (l ListSnapshot) IndexOf(id ItemId) int {
	for i, item := range l.Items {
		if item.Id == id {
			return i
		}
	}

	return -1
}

// Member returns a list member by id.
func (l ListSnapshot) Member(id UserId) (Member, bool) {
	for _, m := range l.Members {
		if m.Id == id {
			return m, true
		}
	}

	return Member{}, false
}

// OrderedMembers returns the list members with the owner first, the rest keep their order.
func (l ListSnapshot) OrderedMembers() []Member {
	members := make([]Member, 0, len(l.Members))
	owner, ownerFound := l.Member(l.Owner)
	if ownerFound {
		members = append(members, owner)
	}
	for _, m := range l.Members {
		if ownerFound && m.Id == l.Owner {
			continue
		}
		members = append(members, m)
	}

	return members
}

// Validate checks all items invariants.
func (l ListSnapshot) Validate() error {
	if l.Id == "" {
		return fmt.Errorf("%s: empty", "Id")
	}
	for i, item := range l.Items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item[%d]: %w", i, err)
		}
	}

	return nil
}

// String implements the stringer interface.
func (i Item) String() string {
	if i.ClaimedBy != nil {
		return fmt.Sprintf("%s (%s) claimed by %s", i.Name, i.Id, i.ClaimedBy.Username)
	}

	return fmt.Sprintf("%s (%s)", i.Name, i.Id)
}

// Copy returns a deep copy of the Item.
func (i Item) Copy() Item {
	if i.ClaimedBy != nil {
		claimant := *i.ClaimedBy
		i.ClaimedBy = &claimant
	}

	return i
}

// Validate checks the claim invariant: Claimed iff ClaimedBy is set.
func (i Item) Validate() error {
	if i.Id == "" {
		return fmt.Errorf("%s: empty", "Id")
	}
	if i.Claimed && i.ClaimedBy == nil {
		return fmt.Errorf("%s: claimed item without claimant", i.Id)
	}
	if !i.Claimed && i.ClaimedBy != nil {
		return fmt.Errorf("%s: unclaimed item with claimant", i.Id)
	}

	return nil
}

// Normalize enforces the claim invariant on a decoded payload.
// The server may send a populated claimedBy alongside isClaimed=false (or a null one with isClaimed=true),
// the claimant reference is the source of truth.
func (i Item) Normalize() Item {
	if i.ClaimedBy != nil && i.ClaimedBy.Id == "" {
		i.ClaimedBy = nil
	}
	i.Claimed = i.ClaimedBy != nil

	return i
}

// ClaimStateFor returns the Item claim state relative to userId.
func (i Item) ClaimStateFor(userId UserId) ClaimState {
	if !i.Claimed || i.ClaimedBy == nil {
		return Unclaimed
	}
	if i.ClaimedBy.Id == userId {
		return ClaimedByMe
	}

	return ClaimedByOther
}

// ApplyClaimToggle returns the Item with the claim toggled by claimant.
// An Item claimed by someone else is returned unchanged alongside an error.
func ApplyClaimToggle(i Item, claimant Claimant) (Item, error) {
	switch i.ClaimStateFor(claimant.Id) {
	case Unclaimed:
		c := claimant
		i.Claimed, i.ClaimedBy = true, &c
	case ClaimedByMe:
		i.Claimed, i.ClaimedBy = false, nil
	default:
		return i, fmt.Errorf("%s: already claimed by %s", i.Id, i.ClaimedBy.Username)
	}

	return i, nil
}

// PartitionLists splits lists into owned by userId and joined ones keeping the input order.
func PartitionLists(lists []ListSummary, userId UserId) (owned, joined []ListSummary) {
	owned, joined = make([]ListSummary, 0), make([]ListSummary, 0)
	for _, l := range lists {
		if l.Owner == userId {
			owned = append(owned, l)
			continue
		}
		joined = append(joined, l)
	}

	return owned, joined
}
