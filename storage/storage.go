package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/itiky/synclist/model"
)

type (
	// ClaimantResolver returns the claimant view for a user id.
	ClaimantResolver func(id model.UserId) (model.Claimant, bool)

	// ItemStorage keeps one list Item elements alongside the arrival ordered list view.
	// ItemStorage implements the "soft delete" methodology.
	ItemStorage struct {
		listId      model.ListId
		list        []*Item
		idDataMatch map[string]*Item
	}
)

// String implements stringer interface.
func (s *ItemStorage) String() string {
	str := strings.Builder{}
	for i, item := range s.list {
		str.WriteString(fmt.Sprintf("- [%d] %s (%s)\n", i, item.Name, item.Id))
	}

	return str.String()
}

// Len returns the number of live items.
func (s *ItemStorage) Len() int {
	return len(s.list)
}

// Get returns a live Item by id.
func (s *ItemStorage) Get(itemId string) (*Item, bool) {
	item, found := s.idDataMatch[itemId]
	if !found || item.IsDeleted {
		return nil, false
	}

	return item, true
}

// Export builds the model.Item slice (snapshot).
func (s *ItemStorage) Export(resolve ClaimantResolver) []model.Item {
	items := make([]model.Item, 0, len(s.list))
	for _, item := range s.list {
		items = append(items, s.exportItem(item, resolve))
	}

	return items
}

// ApplyOperations updates storage state with Operation list and returns deltas performed.
func (s *ItemStorage) ApplyOperations(resolve ClaimantResolver, ops ...Operation) []model.Delta {
	deltas := make([]model.Delta, 0, len(ops))

	for _, op := range ops {
		if op == nil {
			continue
		}

		if delta := op.Apply(s, resolve); delta != nil {
			deltas = append(deltas, *delta)
		}
	}

	return deltas
}

// add appends a new Item, duplicates are ignored.
func (s *ItemStorage) add(itemId uuid.UUID, name string, userId model.UserId, timestamp time.Time, resolve ClaimantResolver) *model.Delta {
	itemIdStr := itemId.String()
	if _, found := s.idDataMatch[itemIdStr]; found {
		return nil
	}

	item := NewStorageItem(itemId, s.listId, name, userId, timestamp)
	s.idDataMatch[itemIdStr] = item
	s.list = append(s.list, item)

	delta := model.NewItemAddedDelta(s.exportItem(item, resolve))

	return &delta
}

// setClaim updates an existing Item claimant (empty claimant unclaims).
func (s *ItemStorage) setClaim(itemId uuid.UUID, claimedBy, userId model.UserId, timestamp time.Time, resolve ClaimantResolver) *model.Delta {
	item, found := s.Get(itemId.String())
	if !found {
		return nil
	}

	item.ClaimedBy = claimedBy
	item.UpdatedBy, item.UpdatedAt = userId, timestamp

	delta := model.NewItemUpdatedDelta(s.exportItem(item, resolve))

	return &delta
}

// delete marks an existing Item as deleted and cuts it from the list view.
func (s *ItemStorage) delete(itemId uuid.UUID, userId model.UserId, timestamp time.Time) *model.Delta {
	itemIdStr := itemId.String()

	item, found := s.idDataMatch[itemIdStr]
	if !found || item.IsDeleted {
		return nil
	}

	// Mark as deleted
	item.IsDeleted = true
	item.UpdatedBy, item.UpdatedAt = userId, timestamp

	// Cut
	itemIdx := s.findItemIdx(item)
	s.list = append(s.list[:itemIdx], s.list[itemIdx+1:]...)

	delta := model.NewItemDeletedDelta(model.ItemId(itemIdStr))

	return &delta
}

// findItemIdx used by delete func: returns the specified item index.
// Panics on failure (should not happen).
func (s *ItemStorage) findItemIdx(item *Item) int {
	for i := range s.list {
		if s.list[i].Id == item.Id {
			return i
		}
	}
	panic("item not found: by id")
}

func (s *ItemStorage) exportItem(item *Item, resolve ClaimantResolver) model.Item {
	res := model.Item{
		Id:   model.ItemId(item.Id.String()),
		Name: item.Name,
	}
	if item.IsClaimed() {
		claimant := model.Claimant{Id: item.ClaimedBy}
		if resolve != nil {
			if c, ok := resolve(item.ClaimedBy); ok {
				claimant = c
			}
		}
		res.Claimed, res.ClaimedBy = true, &claimant
	}

	return res
}

// NewItemStorage creates a new ItemStorage object.
func NewItemStorage(listId model.ListId) *ItemStorage {
	return &ItemStorage{
		listId:      listId,
		idDataMatch: make(map[string]*Item),
	}
}
