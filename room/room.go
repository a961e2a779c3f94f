// Package room implements per-journal coordination: presence, the CRDT
// document, and the event broadcast fan-out that a connection's relay
// forwards to its client.
package room

import (
	"sync"
	"time"

	"parley/crdtdoc"
	"parley/domain"

	"github.com/google/uuid"
)

// Room binds one journal id to a CRDT document, a participants map, and a
// broadcast event channel. Created on first reference, kept alive while
// any participant is present.
type Room struct {
	journalID uuid.UUID
	doc       *crdtdoc.Doc
	hub       *hub

	mu           sync.RWMutex
	participants map[uuid.UUID]domain.Participant
}

func newRoom(journalID uuid.UUID) *Room {
	return &Room{
		journalID:    journalID,
		doc:          crdtdoc.New(journalID.String()),
		hub:          newHub(),
		participants: make(map[uuid.UUID]domain.Participant),
	}
}

func (r *Room) JournalID() uuid.UUID { return r.journalID }
func (r *Room) Doc() *crdtdoc.Doc    { return r.doc }

// Subscribe returns a channel of this room's events and a function to stop
// receiving them.
func (r *Room) Subscribe() (<-chan Event, func()) {
	return r.hub.subscribe()
}

// Join allocates a new presence participant, inserts it, and broadcasts
// ParticipantJoined.
func (r *Room) Join(name string, kind domain.ParticipantKind) domain.Participant {
	p := domain.NewParticipant(name, kind)

	r.mu.Lock()
	r.participants[p.Id] = p
	r.mu.Unlock()

	r.hub.publish(Event{Kind: EventParticipantJoined, Participant: p})
	return p
}

// Rejoin inserts a participant with a pre-existing id, for the reconnect
// path.
func (r *Room) Rejoin(p domain.Participant) domain.Participant {
	r.mu.Lock()
	r.participants[p.Id] = p
	r.mu.Unlock()

	r.hub.publish(Event{Kind: EventParticipantJoined, Participant: p})
	return p
}

// Leave removes a participant, broadcasting ParticipantLeft if it was
// present.
func (r *Room) Leave(participantID uuid.UUID) (domain.Participant, bool) {
	r.mu.Lock()
	p, ok := r.participants[participantID]
	if ok {
		delete(r.participants, participantID)
	}
	r.mu.Unlock()

	if ok {
		r.hub.publish(Event{Kind: EventParticipantLeft, ParticipantId: participantID})
	}
	return p, ok
}

// UpdateCursor records a participant's cursor and broadcasts CursorMoved.
func (r *Room) UpdateCursor(participantID uuid.UUID, blockID *uuid.UUID, offset *int) bool {
	r.mu.Lock()
	p, ok := r.participants[participantID]
	if ok {
		p.Cursor = &domain.Cursor{BlockId: blockID, Offset: offset}
		p.LastSeenAt = time.Now().UTC()
		r.participants[participantID] = p
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.hub.publish(Event{Kind: EventCursorMoved, ParticipantId: participantID, BlockId: blockID, Offset: offset})
	return true
}

// Participants returns a snapshot of every current participant.
func (r *Room) Participants() []domain.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	return out
}

// Participant returns one participant by id.
func (r *Room) Participant(id uuid.UUID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.participants[id]
	return p, ok
}

// ParticipantCount reports how many participants currently hold presence.
func (r *Room) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// IsEmpty reports whether this room has no participants left.
func (r *Room) IsEmpty() bool {
	return r.ParticipantCount() == 0
}

// ApplyUpdate merges a foreign CRDT update into the document and
// broadcasts it, tagging the event with the participant it came from so
// relays can suppress the self-echo.
func (r *Room) ApplyUpdate(source *uuid.UUID, update []byte) error {
	if err := r.doc.ApplyUpdate(update); err != nil {
		return err
	}
	r.hub.publish(Event{Kind: EventCrdtUpdate, Source: source, Update: update})
	return nil
}

// GetSyncState returns the document's full encoded state, for a new
// subscriber's initial catch-up.
func (r *Room) GetSyncState() ([]byte, error) {
	return r.doc.EncodeState()
}

// BroadcastSync publishes the full document state to every subscriber.
func (r *Room) BroadcastSync() error {
	state, err := r.doc.EncodeState()
	if err != nil {
		return err
	}
	r.hub.publish(Event{Kind: EventSyncState, State: state})
	return nil
}

// SetBlockContent replaces a block's content and broadcasts the resulting
// diff as a CrdtUpdate.
func (r *Room) SetBlockContent(blockID uuid.UUID, content string, source *uuid.UUID) error {
	before, err := r.doc.StateVector()
	if err != nil {
		return err
	}
	r.doc.SetBlockContent(blockID, content)
	return r.broadcastDiffSince(before, source)
}

// AppendBlockContent appends to a block's content and broadcasts the
// resulting diff as a CrdtUpdate.
func (r *Room) AppendBlockContent(blockID uuid.UUID, delta string, source *uuid.UUID) error {
	before, err := r.doc.StateVector()
	if err != nil {
		return err
	}
	r.doc.AppendBlockContent(blockID, delta)
	return r.broadcastDiffSince(before, source)
}

func (r *Room) broadcastDiffSince(beforeSV []byte, source *uuid.UUID) error {
	update, err := r.doc.EncodeDiff(beforeSV)
	if err != nil {
		return err
	}
	r.hub.publish(Event{Kind: EventCrdtUpdate, Source: source, Update: update})
	return nil
}

// PublishBlockCreated broadcasts that a new block now exists in this
// journal.
func (r *Room) PublishBlockCreated(block domain.Block) {
	r.hub.publish(Event{Kind: EventBlockCreated, Block: block})
}

// PublishBlockStatusChanged broadcasts a block's new persisted status.
func (r *Room) PublishBlockStatusChanged(blockID uuid.UUID, status domain.BlockStatus) {
	r.hub.publish(Event{Kind: EventBlockStatusChanged, BlockId: &blockID, BlockStatus: status})
}

// PublishBlockContentDelta broadcasts one streamed chunk of an assistant
// block's content, ahead of that content being durably persisted.
func (r *Room) PublishBlockContentDelta(blockID uuid.UUID, delta string) {
	r.hub.publish(Event{Kind: EventBlockContentDelta, BlockId: &blockID, Delta: delta})
}

// PublishBlockForked broadcasts that originalBlockID was forked into
// newBlock.
func (r *Room) PublishBlockForked(originalBlockID uuid.UUID, newBlock domain.Block) {
	r.hub.publish(Event{Kind: EventBlockForked, OriginalBlock: originalBlockID, Block: newBlock})
}

// PublishBlockCancelled broadcasts that an in-flight block's generation
// was cancelled.
func (r *Room) PublishBlockCancelled(blockID uuid.UUID) {
	r.hub.publish(Event{Kind: EventBlockCancelled, BlockId: &blockID})
}

// CleanupStaleParticipants transitions participants that have not been
// seen recently from active to idle, and from idle (or active) to
// disconnected once they exceed disconnectTimeout.
func (r *Room) CleanupStaleParticipants(idleTimeout, disconnectTimeout time.Duration) {
	now := time.Now().UTC()

	r.mu.Lock()
	var changed []domain.Participant
	for id, p := range r.participants {
		age := now.Sub(p.LastSeenAt)
		switch {
		case age >= disconnectTimeout && p.Status != domain.ParticipantStatusDisconnected:
			p.Status = domain.ParticipantStatusDisconnected
			r.participants[id] = p
			changed = append(changed, p)
		case age >= idleTimeout && p.Status == domain.ParticipantStatusActive:
			p.Status = domain.ParticipantStatusIdle
			r.participants[id] = p
			changed = append(changed, p)
		}
	}
	r.mu.Unlock()

	for _, p := range changed {
		r.hub.publish(Event{Kind: EventStatusChanged, ParticipantId: p.Id, Status: p.Status})
	}
}
