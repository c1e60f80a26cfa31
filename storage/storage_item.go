package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/itiky/synclist/model"
)

type (
	// Item keeps ItemStorage element data.
	Item struct {
		Id        uuid.UUID
		ListId    model.ListId
		Name      string
		ClaimedBy model.UserId
		IsDeleted bool
		UpdatedBy model.UserId
		UpdatedAt time.Time
	}

	// User keeps account data.
	User struct {
		Id           model.UserId
		Username     string
		Email        string
		PasswordHash []byte
		AvatarUrl    string
		CreatedAt    time.Time
	}
)

// String implements stringer interface.
func (i Item) String() string {
	raw, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		return fmt.Sprintf("marshal: %v", err)
	}

	return string(raw)
}

// IsClaimed checks if the Item has a claimant.
func (i Item) IsClaimed() bool {
	return i.ClaimedBy != ""
}

// NewStorageItem creates a new Item object (no validation as it is used internaly).
func NewStorageItem(itemId uuid.UUID, listId model.ListId, name string, userId model.UserId, timestamp time.Time) *Item {
	return &Item{
		Id:        itemId,
		ListId:    listId,
		Name:      name,
		UpdatedBy: userId,
		UpdatedAt: timestamp,
	}
}

// Member converts User to the list member view.
func (u User) Member() model.Member {
	return model.Member{
		Id:        u.Id,
		Username:  u.Username,
		AvatarUrl: u.AvatarUrl,
	}
}

// Claimant converts User to the item claimant view.
func (u User) Claimant() model.Claimant {
	return model.Claimant{
		Id:        u.Id,
		Username:  u.Username,
		AvatarUrl: u.AvatarUrl,
	}
}

// Profile converts User to the profile view.
func (u User) Profile() model.Profile {
	return model.Profile{
		Id:        u.Id,
		Username:  u.Username,
		Email:     u.Email,
		AvatarUrl: u.AvatarUrl,
	}
}
