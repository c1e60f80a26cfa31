package model

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestItem(id string, claimedBy UserId) Item {
	item := Item{Id: ItemId(id), Name: "item " + id}
	if claimedBy != "" {
		item.Claimed = true
		item.ClaimedBy = &Claimant{Id: claimedBy, Username: string(claimedBy)}
	}

	return item
}

func newTestSnapshot(ids ...string) ListSnapshot {
	l := ListSnapshot{Id: "list", Name: "Groceries", Owner: "owner"}
	for _, id := range ids {
		l.Items = append(l.Items, newTestItem(id, ""))
	}

	return l
}

func itemIds(l ListSnapshot) []ItemId {
	ids := make([]ItemId, 0, len(l.Items))
	for _, item := range l.Items {
		ids = append(ids, item.Id)
	}

	return ids
}

func Test_ApplyDelta_ClaimUpdate(t *testing.T) {
	l := ListSnapshot{Id: "list", Items: []Item{{Id: "1", Name: "Milk"}}}

	claimed := Item{Id: "1", Name: "Milk", Claimed: true, ClaimedBy: &Claimant{Id: "u1", Username: "alice"}}
	l, changed := ApplyDelta(l, NewItemUpdatedDelta(claimed))
	require.True(t, changed)
	require.Len(t, l.Items, 1)
	require.True(t, l.Items[0].Claimed)
	require.NotNil(t, l.Items[0].ClaimedBy)
	require.Equal(t, UserId("u1"), l.Items[0].ClaimedBy.Id)
	require.NoError(t, l.Validate())
}

func Test_ApplyDelta_DeleteMissing(t *testing.T) {
	l := newTestSnapshot("1", "2")

	res, changed := ApplyDelta(l, NewItemDeletedDelta("3"))
	require.False(t, changed)
	require.Equal(t, l, res)
}

func Test_ApplyDelta_DeleteIdempotent(t *testing.T) {
	l := newTestSnapshot("1", "2", "3")

	once, changed := ApplyDelta(l, NewItemDeletedDelta("2"))
	require.True(t, changed)
	twice, changed := ApplyDelta(once, NewItemDeletedDelta("2"))
	require.False(t, changed)

	require.Equal(t, once, twice)
	require.Equal(t, []ItemId{"1", "3"}, itemIds(twice))
}

func Test_ApplyDelta_AddDedupe(t *testing.T) {
	l := newTestSnapshot("1", "2")

	dup := newTestItem("2", "u1")
	res, changed := ApplyDelta(l, NewItemAddedDelta(dup))
	require.False(t, changed)
	require.Equal(t, l, res)
	require.False(t, res.Items[1].Claimed, "existing item must not be overwritten")
}

func Test_ApplyDelta_AddArrivalOrder(t *testing.T) {
	l := newTestSnapshot()

	for _, id := range []string{"c", "a", "b"} {
		l, _ = ApplyDelta(l, NewItemAddedDelta(newTestItem(id, "")))
	}
	require.Equal(t, []ItemId{"c", "a", "b"}, itemIds(l))
}

func Test_ApplyDelta_UpdateMissing(t *testing.T) {
	l := newTestSnapshot("1")

	// update racing a delete
	l, _ = ApplyDelta(l, NewItemDeletedDelta("1"))
	res, changed := ApplyDelta(l, NewItemUpdatedDelta(newTestItem("1", "u1")))
	require.False(t, changed)
	require.Empty(t, res.Items)
}

func Test_ApplyDelta_InputNotMutated(t *testing.T) {
	l := newTestSnapshot("1", "2", "3")
	orig := l.Copy()

	ApplyDelta(l, NewItemUpdatedDelta(newTestItem("2", "u1")))
	ApplyDelta(l, NewItemDeletedDelta("1"))
	ApplyDelta(l, NewItemAddedDelta(newTestItem("4", "")))

	require.Equal(t, orig, l)
}

func Test_ApplyDelta_UnknownType(t *testing.T) {
	l := newTestSnapshot("1")

	res, changed := ApplyDelta(l, Delta{Type: "itemMoved", ItemId: "1"})
	require.False(t, changed)
	require.Equal(t, l, res)
}

// Test applies random delta sequences and checks the claim invariant and id uniqueness after every step.
func Test_ApplyDelta_RandomInvariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	l := newTestSnapshot()

	randomItem := func() Item {
		id := fmt.Sprintf("%d", rnd.Intn(8))
		item := Item{Id: ItemId(id), Name: "n" + id}
		switch rnd.Intn(3) {
		case 0:
			item.ClaimedBy = &Claimant{Id: "u1"}
		case 1:
			// inconsistent payloads are normalized
			item.Claimed = true
		}
		return item
	}

	for i := 0; i < 2000; i++ {
		var d Delta
		switch rnd.Intn(3) {
		case 0:
			d = NewItemAddedDelta(randomItem())
		case 1:
			d = NewItemUpdatedDelta(randomItem())
		case 2:
			d = NewItemDeletedDelta(ItemId(fmt.Sprintf("%d", rnd.Intn(8))))
		}

		l, _ = ApplyDelta(l, d)

		require.NoError(t, l.Validate(), "step %d: %s", i, d)
		seen := make(map[ItemId]bool)
		for _, item := range l.Items {
			require.False(t, seen[item.Id], "step %d: duplicate id %s", i, item.Id)
			seen[item.Id] = true
		}
	}
}

func Test_ApplyDeltas(t *testing.T) {
	l := newTestSnapshot("1")

	l, applied := ApplyDeltas(l,
		NewItemAddedDelta(newTestItem("2", "")),
		NewItemAddedDelta(newTestItem("2", "")),
		NewItemUpdatedDelta(newTestItem("1", "u1")),
		NewItemDeletedDelta("9"),
	)
	require.Equal(t, 2, applied)
	require.Equal(t, []ItemId{"1", "2"}, itemIds(l))
	require.Equal(t, ClaimedByMe, l.Items[0].ClaimStateFor("u1"))
}

func Test_DeltaFromEnvelope(t *testing.T) {
	t.Run("itemAdded", func(t *testing.T) {
		raw := `{"event":"itemAdded","data":{"_id":"i1","itemName":"Milk","isClaimed":false,"claimedBy":null}}`
		var e Envelope
		require.NoError(t, json.Unmarshal([]byte(raw), &e))

		d, ok, err := DeltaFromEnvelope(e)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, ItemAddedDeltaType, d.Type)
		require.Equal(t, ItemId("i1"), d.ItemId)
		require.Equal(t, "Milk", d.Item.Name)
		require.Nil(t, d.Item.ClaimedBy)
	})

	t.Run("itemDeleted", func(t *testing.T) {
		e := Envelope{Event: "itemDeleted", Data: json.RawMessage(`"i1"`)}

		d, ok, err := DeltaFromEnvelope(e)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, NewItemDeletedDelta("i1"), d)
	})

	t.Run("unknown event", func(t *testing.T) {
		_, ok, err := DeltaFromEnvelope(Envelope{Event: "listRenamed"})
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("malformed", func(t *testing.T) {
		_, ok, err := DeltaFromEnvelope(Envelope{Event: "itemUpdated", Data: json.RawMessage(`"oops"`)})
		require.Error(t, err)
		require.True(t, ok)

		_, _, err = DeltaFromEnvelope(Envelope{Event: "itemDeleted", Data: json.RawMessage(`""`)})
		require.Error(t, err)
	})

	t.Run("roundtrip via EnvelopeFromDelta", func(t *testing.T) {
		src := NewItemUpdatedDelta(newTestItem("i2", "u2"))
		e, err := EnvelopeFromDelta(src)
		require.NoError(t, err)

		d, ok, err := DeltaFromEnvelope(e)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, src, d)
	})
}
