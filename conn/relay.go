package conn

import (
	"parley/room"
	"parley/wireproto"

	"github.com/google/uuid"
)

// relay forwards journalID's room events to this connection until its
// channel closes (on unsubscribe or disconnect), suppressing events this
// connection's own participant originated.
func (h *Handler) relay(journalID uuid.UUID, selfID uuid.UUID, events <-chan room.Event) {
	for ev := range events {
		if msg, ok := h.translate(journalID, selfID, ev); ok {
			h.send(msg)
		}
	}
}

// translate converts a room.Event into its wire frame, or reports ok=false
// if the event is a self-echo that should not be sent back to its
// originator.
func (h *Handler) translate(journalID, selfID uuid.UUID, ev room.Event) (wireproto.ServerMessage, bool) {
	switch ev.Kind {
	case room.EventParticipantJoined:
		if ev.Participant.Id == selfID {
			return wireproto.ServerMessage{}, false
		}
		wp := wireproto.FromParticipant(ev.Participant)
		return wireproto.ServerMessage{Type: wireproto.ServerParticipantJoined, JournalId: journalID, Participant: &wp}, true

	case room.EventParticipantLeft:
		return wireproto.ServerMessage{Type: wireproto.ServerParticipantLeft, JournalId: journalID, ParticipantId: ev.ParticipantId}, true

	case room.EventCursorMoved:
		if ev.ParticipantId == selfID {
			return wireproto.ServerMessage{}, false
		}
		return wireproto.ServerMessage{Type: wireproto.ServerCursorMoved, JournalId: journalID, ParticipantId: ev.ParticipantId, BlockId: ev.BlockId, Offset: ev.Offset}, true

	case room.EventStatusChanged:
		return wireproto.ServerMessage{Type: wireproto.ServerParticipantStatusChange, JournalId: journalID, ParticipantId: ev.ParticipantId, Status: string(ev.Status)}, true

	case room.EventCrdtUpdate:
		if ev.Source != nil && *ev.Source == selfID {
			return wireproto.ServerMessage{}, false
		}
		return wireproto.ServerMessage{Type: wireproto.ServerCrdtUpdate, JournalId: journalID, Source: ev.Source, Update: wireproto.EncodeBinary(ev.Update)}, true

	case room.EventSyncState:
		return wireproto.ServerMessage{Type: wireproto.ServerSyncState, JournalId: journalID, State: wireproto.EncodeBinary(ev.State)}, true

	case room.EventBlockCreated:
		wb := wireproto.FromBlock(ev.Block)
		return wireproto.ServerMessage{Type: wireproto.ServerBlockCreated, JournalId: journalID, Block: &wb}, true

	case room.EventBlockStatusChanged:
		return wireproto.ServerMessage{Type: wireproto.ServerBlockStatusChanged, JournalId: journalID, BlockId: blockIDOf(ev), Status: string(ev.BlockStatus)}, true

	case room.EventBlockContentDelta:
		return wireproto.ServerMessage{Type: wireproto.ServerBlockContentDelta, JournalId: journalID, BlockId: blockIDOf(ev), Delta: ev.Delta}, true

	case room.EventBlockForked:
		wb := wireproto.FromBlock(ev.Block)
		return wireproto.ServerMessage{Type: wireproto.ServerBlockForked, JournalId: journalID, OriginalBlockId: ev.OriginalBlock, NewBlock: &wb}, true

	case room.EventBlockCancelled:
		return wireproto.ServerMessage{Type: wireproto.ServerBlockCancelled, JournalId: journalID, BlockId: blockIDOf(ev)}, true

	default:
		return wireproto.ServerMessage{}, false
	}
}

func blockIDOf(ev room.Event) uuid.UUID {
	if ev.BlockId == nil {
		return uuid.UUID{}
	}
	return *ev.BlockId
}
