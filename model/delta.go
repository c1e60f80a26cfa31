package model

import (
	"encoding/json"
	"fmt"
)

type (
	// Delta is an incremental ListSnapshot change pushed over the realtime channel.
	Delta struct {
		Type DeltaType
		// Set for added / updated deltas
		Item Item
		// Set for deleted deltas (and mirrors Item.Id for others)
		ItemId ItemId
	}

	// Envelope is a realtime channel message.
	Envelope struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data,omitempty"`
	}
)

// NewItemAddedDelta creates a new itemAdded Delta.
func NewItemAddedDelta(item Item) Delta {
	return Delta{Type: ItemAddedDeltaType, Item: item, ItemId: item.Id}
}

// NewItemUpdatedDelta creates a new itemUpdated Delta.
func NewItemUpdatedDelta(item Item) Delta {
	return Delta{Type: ItemUpdatedDeltaType, Item: item, ItemId: item.Id}
}

// NewItemDeletedDelta creates a new itemDeleted Delta.
func NewItemDeletedDelta(id ItemId) Delta {
	return Delta{Type: ItemDeletedDeltaType, ItemId: id}
}

// String implements the stringer interface.
func (d Delta) String() string {
	if d.Type == ItemDeletedDeltaType {
		return fmt.Sprintf("%s: %s", d.Type, d.ItemId)
	}

	return fmt.Sprintf("%s: %s", d.Type, d.Item.String())
}

// NewEnvelope marshals data into an Envelope.
func NewEnvelope(event string, data interface{}) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("%s: marshal: %w", event, err)
	}

	return Envelope{Event: event, Data: raw}, nil
}

// EnvelopeFromDelta converts a Delta to its wire representation.
func EnvelopeFromDelta(d Delta) (Envelope, error) {
	switch d.Type {
	case ItemAddedDeltaType, ItemUpdatedDeltaType:
		return NewEnvelope(string(d.Type), d.Item)
	case ItemDeletedDeltaType:
		return NewEnvelope(string(d.Type), d.ItemId)
	}

	return Envelope{}, fmt.Errorf("%s: unknown delta type", d.Type)
}

// DeltaFromEnvelope decodes a realtime message.
// Returns false for non-delta events.
func DeltaFromEnvelope(e Envelope) (Delta, bool, error) {
	t := DeltaType(e.Event)
	if !t.IsValid() {
		return Delta{}, false, nil
	}

	switch t {
	case ItemDeletedDeltaType:
		var id ItemId
		if err := json.Unmarshal(e.Data, &id); err != nil {
			return Delta{}, true, fmt.Errorf("%s: unmarshal: %w", t, err)
		}
		if id == "" {
			return Delta{}, true, fmt.Errorf("%s: empty item id", t)
		}
		return NewItemDeletedDelta(id), true, nil
	default:
		var item Item
		if err := json.Unmarshal(e.Data, &item); err != nil {
			return Delta{}, true, fmt.Errorf("%s: unmarshal: %w", t, err)
		}
		if item.Id == "" {
			return Delta{}, true, fmt.Errorf("%s: empty item id", t)
		}
		item = item.Normalize()
		return Delta{Type: t, Item: item, ItemId: item.Id}, true, nil
	}
}

// ApplyDelta applies a Delta to the snapshot returning the new version and whether anything changed.
// Missing targets and duplicates are no-ops since the realtime channel gives no ordering guarantees:
// an update might race a delete, an add might arrive after the REST snapshot already contains the item.
// The input snapshot Items slice is never modified.
func ApplyDelta(l ListSnapshot, d Delta) (ListSnapshot, bool) {
	switch d.Type {

	case ItemAddedDeltaType:
		if l.IndexOf(d.Item.Id) >= 0 {
			return l, false
		}

		items := make([]Item, 0, len(l.Items)+1)
		items = append(items, l.Items...)
		l.Items = append(items, d.Item.Normalize())

		return l, true

	case ItemUpdatedDeltaType:
		idx := l.IndexOf(d.Item.Id)
		if idx < 0 {
			return l, false
		}

		items := make([]Item, len(l.Items))
		copy(items, l.Items)
		items[idx] = d.Item.Normalize()
		l.Items = items

		return l, true

	case ItemDeletedDeltaType:
		idx := l.IndexOf(d.ItemId)
		if idx < 0 {
			return l, false
		}

		items := make([]Item, 0, len(l.Items)-1)
		items = append(items, l.Items[:idx]...)
		l.Items = append(items, l.Items[idx+1:]...)

		return l, true

	}

	return l, false
}

// ApplyDeltas applies deltas in order and returns the number of effective ones.
func ApplyDeltas(l ListSnapshot, deltas ...Delta) (ListSnapshot, int) {
	applied := 0
	for _, d := range deltas {
		var changed bool
		if l, changed = ApplyDelta(l, d); changed {
			applied++
		}
	}

	return l, applied
}
