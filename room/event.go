package room

import (
	"parley/domain"

	"github.com/google/uuid"
)

// EventKind discriminates the payload carried by a room Event.
type EventKind string

const (
	EventParticipantJoined EventKind = "participant_joined"
	EventParticipantLeft   EventKind = "participant_left"
	EventCursorMoved       EventKind = "cursor_moved"
	EventStatusChanged     EventKind = "status_changed"
	EventCrdtUpdate        EventKind = "crdt_update"
	EventSyncState         EventKind = "sync_state"

	EventBlockCreated       EventKind = "block_created"
	EventBlockStatusChanged EventKind = "block_status_changed"
	EventBlockContentDelta  EventKind = "block_content_delta"
	EventBlockForked        EventKind = "block_forked"
	EventBlockCancelled     EventKind = "block_cancelled"
)

// Event is one occurrence broadcast on a room's event channel.
type Event struct {
	Kind EventKind

	Participant domain.Participant // ParticipantJoined

	ParticipantId uuid.UUID // ParticipantLeft, CursorMoved, StatusChanged

	BlockId *uuid.UUID // CursorMoved, BlockStatusChanged, BlockContentDelta, BlockCancelled
	Offset  *int       // CursorMoved

	Status domain.ParticipantStatus // StatusChanged

	Source *uuid.UUID // CrdtUpdate; nil for server-originated
	Update []byte     // CrdtUpdate

	State []byte // SyncState

	Block         domain.Block       // BlockCreated, BlockForked (the new block)
	BlockStatus   domain.BlockStatus // BlockStatusChanged
	Delta         string             // BlockContentDelta
	OriginalBlock uuid.UUID          // BlockForked
}
