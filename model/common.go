package model

type (
	ListId string

	ItemId string

	UserId string
)

// DeltaType is a realtime event name carrying a list change.
type DeltaType string

const (
	ItemAddedDeltaType   DeltaType = "itemAdded"
	ItemUpdatedDeltaType DeltaType = "itemUpdated"
	ItemDeletedDeltaType DeltaType = "itemDeleted"
)

// Room membership events emitted by a client.
const (
	JoinListEvent  = "joinList"
	LeaveListEvent = "leaveList"
)

// IsValid checks if DeltaType is known.
func (t DeltaType) IsValid() bool {
	switch t {
	case ItemAddedDeltaType, ItemUpdatedDeltaType, ItemDeletedDeltaType:
		return true
	}

	return false
}
