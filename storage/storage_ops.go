package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itiky/synclist/model"
)

type (
	// Operation is an operation performed on ItemStorage to update its state.
	Operation interface {
		// Update the storage state returning the realtime delta to broadcast (nil if nothing changed)
		Apply(s *ItemStorage, resolve ClaimantResolver) *model.Delta
		GetId() uuid.UUID
		GetTimestamp() time.Time
	}

	// AddOperation implements Operation interface for create operation.
	AddOperation struct {
		Id        uuid.UUID
		Name      string
		CreatedBy model.UserId
		CreatedAt time.Time
	}

	// ClaimOperation implements Operation interface for claim / unclaim operation.
	ClaimOperation struct {
		Id uuid.UUID
		// Empty value unclaims the item
		ClaimedBy model.UserId
		UpdatedBy model.UserId
		UpdatedAt time.Time
	}

	// DeleteOperation implements Operation interface for delete operation.
	DeleteOperation struct {
		Id        uuid.UUID
		DeletedBy model.UserId
		DeletedAt time.Time
	}
)

// Apply implements Operation interface.
func (o AddOperation) Apply(s *ItemStorage, resolve ClaimantResolver) *model.Delta {
	return s.add(o.Id, o.Name, o.CreatedBy, o.CreatedAt, resolve)
}

// GetId implements Operation interface.
func (o AddOperation) GetId() uuid.UUID {
	return o.Id
}

// GetTimestamp implements Operation interface.
func (o AddOperation) GetTimestamp() time.Time {
	return o.CreatedAt
}

// Apply implements Operation interface.
func (o ClaimOperation) Apply(s *ItemStorage, resolve ClaimantResolver) *model.Delta {
	return s.setClaim(o.Id, o.ClaimedBy, o.UpdatedBy, o.UpdatedAt, resolve)
}

// GetId implements Operation interface.
func (o ClaimOperation) GetId() uuid.UUID {
	return o.Id
}

// GetTimestamp implements Operation interface.
func (o ClaimOperation) GetTimestamp() time.Time {
	return o.UpdatedAt
}

// Apply implements Operation interface.
func (o DeleteOperation) Apply(s *ItemStorage, resolve ClaimantResolver) *model.Delta {
	return s.delete(o.Id, o.DeletedBy, o.DeletedAt)
}

// GetId implements Operation interface.
func (o DeleteOperation) GetId() uuid.UUID {
	return o.Id
}

// GetTimestamp implements Operation interface.
func (o DeleteOperation) GetTimestamp() time.Time {
	return o.DeletedAt
}

// NewAddOperation creates a valid Operation object with a new item id.
func NewAddOperation(name string, userId model.UserId, timestamp time.Time) (AddOperation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return AddOperation{}, fmt.Errorf("%s: empty", "name")
	}
	if timestamp.IsZero() {
		return AddOperation{}, fmt.Errorf("%s: zero", "timestamp")
	}

	return AddOperation{
		Id:        uuid.New(),
		Name:      name,
		CreatedBy: userId,
		CreatedAt: timestamp,
	}, nil
}

// NewClaimOperation creates a valid Operation object.
func NewClaimOperation(itemId string, claimedBy, userId model.UserId, timestamp time.Time) (ClaimOperation, error) {
	id, err := uuid.Parse(itemId)
	if err != nil {
		return ClaimOperation{}, fmt.Errorf("%s: invalid: %w", "itemId", err)
	}
	if timestamp.IsZero() {
		return ClaimOperation{}, fmt.Errorf("%s: zero", "timestamp")
	}

	return ClaimOperation{
		Id:        id,
		ClaimedBy: claimedBy,
		UpdatedBy: userId,
		UpdatedAt: timestamp,
	}, nil
}

// NewDeleteOperation creates a valid Operation object.
func NewDeleteOperation(itemId string, userId model.UserId, timestamp time.Time) (DeleteOperation, error) {
	id, err := uuid.Parse(itemId)
	if err != nil {
		return DeleteOperation{}, fmt.Errorf("%s: invalid: %w", "itemId", err)
	}
	if timestamp.IsZero() {
		return DeleteOperation{}, fmt.Errorf("%s: zero", "timestamp")
	}

	return DeleteOperation{
		Id:        id,
		DeletedBy: userId,
		DeletedAt: timestamp,
	}, nil
}
