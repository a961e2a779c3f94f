// Package crdtdoc implements the per-journal mergeable text-per-block
// structure described by the CRDT document contract: an ordered,
// per-replica operation log that replays deterministically regardless of
// delivery order, giving commutative, idempotent, associative merges
// without depending on any external CRDT library.
package crdtdoc

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/kelindar/binary"
)

// OpKind is the kind of mutation an Op represents.
type OpKind uint8

const (
	OpInsert OpKind = iota
	OpDelete
	OpSet
	OpDeleteBlock
)

// Op is one mutation to one block's text, tagged with the logical clock of
// the replica that produced it. Ops are totally ordered by (Clock,
// ReplicaID) so that replaying the same op set in that order, regardless of
// the order in which it arrived, always yields the same materialized text.
type Op struct {
	ReplicaID string
	Clock     uint64
	BlockID   uuid.UUID
	Kind      OpKind
	Pos       int
	Text      string
	Len       int
}

func (a Op) less(b Op) bool {
	if a.Clock != b.Clock {
		return a.Clock < b.Clock
	}
	return a.ReplicaID < b.ReplicaID
}

// Doc is a single journal's CRDT document: a replica-local view of the
// shared op log, with a materialized-content cache invalidated on mutation.
type Doc struct {
	mu        sync.Mutex
	replicaID string
	clock     uint64
	ops       []Op
	seen      map[string]struct{} // "replicaID:clock" dedup set
	cache     map[uuid.UUID]string
	cacheOK   map[uuid.UUID]bool
}

// New creates an empty document for a fresh replica identity.
func New(replicaID string) *Doc {
	return &Doc{
		replicaID: replicaID,
		seen:      make(map[string]struct{}),
		cache:     make(map[uuid.UUID]string),
		cacheOK:   make(map[uuid.UUID]bool),
	}
}

func dedupKey(replicaID string, clock uint64) string {
	return replicaID + ":" + itoa(clock)
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func (d *Doc) nextClock() uint64 {
	d.clock++
	return d.clock
}

func (d *Doc) appendOpLocked(op Op) {
	key := dedupKey(op.ReplicaID, op.Clock)
	if _, ok := d.seen[key]; ok {
		return
	}
	d.seen[key] = struct{}{}
	d.ops = append(d.ops, op)
	delete(d.cacheOK, op.BlockID)
}

// GetOrCreateBlockText returns the current materialized content of a block,
// or "" if it has never been written. A block exists only through its ops,
// so this records nothing: an unwritten block stays out of ListBlocks.
func (d *Doc) GetOrCreateBlockText(blockID uuid.UUID) string {
	return d.GetBlockContent(blockID)
}

// GetBlockContent returns a block's current materialized content, or "" if
// the block has never been written to.
func (d *Doc) GetBlockContent(blockID uuid.UUID) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.materialize(blockID)
}

// SetBlockContent replaces a block's content wholesale (erase then
// insert).
func (d *Doc) SetBlockContent(blockID uuid.UUID, content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.appendOpLocked(Op{
		ReplicaID: d.replicaID,
		Clock:     d.nextClock(),
		BlockID:   blockID,
		Kind:      OpSet,
		Text:      content,
	})
}

// AppendBlockContent inserts content at the end of a block's current text,
// used for token-by-token streaming.
func (d *Doc) AppendBlockContent(blockID uuid.UUID, delta string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur := d.materialize(blockID)
	d.appendOpLocked(Op{
		ReplicaID: d.replicaID,
		Clock:     d.nextClock(),
		BlockID:   blockID,
		Kind:      OpInsert,
		Pos:       len(cur),
		Text:      delta,
	})
}

// DeleteBlock removes a block from the document entirely.
func (d *Doc) DeleteBlock(blockID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.appendOpLocked(Op{
		ReplicaID: d.replicaID,
		Clock:     d.nextClock(),
		BlockID:   blockID,
		Kind:      OpDeleteBlock,
	})
}

// ListBlocks returns every block id with live content in the document.
func (d *Doc) ListBlocks() []uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, op := range d.ops {
		if !seen[op.BlockID] {
			seen[op.BlockID] = true
			ids = append(ids, op.BlockID)
		}
	}

	var live []uuid.UUID
	for _, id := range ids {
		if !d.deletedLocked(id) {
			live = append(live, id)
		}
	}
	return live
}

func (d *Doc) deletedLocked(blockID uuid.UUID) bool {
	ordered := d.orderedOpsLocked(blockID)
	return len(ordered) > 0 && ordered[len(ordered)-1].Kind == OpDeleteBlock
}

func (d *Doc) orderedOpsLocked(blockID uuid.UUID) []Op {
	var ops []Op
	for _, op := range d.ops {
		if op.BlockID == blockID {
			ops = append(ops, op)
		}
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].less(ops[j]) })
	return ops
}

// materialize replays a block's op log in canonical (Clock, ReplicaID)
// order to reconstruct its current content. Caches the result until the
// next mutation touching this block invalidates it.
func (d *Doc) materialize(blockID uuid.UUID) string {
	if d.cacheOK[blockID] {
		return d.cache[blockID]
	}

	var buf []byte
	for _, op := range d.orderedOpsLocked(blockID) {
		switch op.Kind {
		case OpSet:
			buf = []byte(op.Text)
		case OpInsert:
			pos := op.Pos
			if pos > len(buf) {
				pos = len(buf)
			}
			if pos < 0 {
				pos = 0
			}
			out := make([]byte, 0, len(buf)+len(op.Text))
			out = append(out, buf[:pos]...)
			out = append(out, op.Text...)
			out = append(out, buf[pos:]...)
			buf = out
		case OpDelete:
			start := op.Pos
			end := op.Pos + op.Len
			if start < 0 {
				start = 0
			}
			if end > len(buf) {
				end = len(buf)
			}
			if start >= end {
				continue
			}
			out := make([]byte, 0, len(buf)-(end-start))
			out = append(out, buf[:start]...)
			out = append(out, buf[end:]...)
			buf = out
		case OpDeleteBlock:
			buf = nil
		}
	}

	content := string(buf)
	d.cache[blockID] = content
	d.cacheOK[blockID] = true
	return content
}

// wireEnvelope is the kelindar/binary-encoded shape of a document update:
// a flat slice of ops, independent of which blocks they touch.
type wireEnvelope struct {
	Ops []Op
}

// EncodeState returns the full document state as a single binary update.
func (d *Doc) EncodeState() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return binary.Marshal(wireEnvelope{Ops: append([]Op(nil), d.ops...)})
}

// StateVector returns a compact summary of this replica's view: the
// highest clock observed per replica id, sufficient for a peer to compute
// the minimal diff this replica still lacks.
func (d *Doc) StateVector() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	highest := make(map[string]uint64)
	for _, op := range d.ops {
		if op.Clock > highest[op.ReplicaID] {
			highest[op.ReplicaID] = op.Clock
		}
	}
	return binary.Marshal(highest)
}

// EncodeDiff returns the ops the remote (described by remoteSV) does not
// yet have.
func (d *Doc) EncodeDiff(remoteSV []byte) ([]byte, error) {
	var highest map[string]uint64
	if len(remoteSV) > 0 {
		if err := binary.Unmarshal(remoteSV, &highest); err != nil {
			return nil, err
		}
	}
	if highest == nil {
		highest = make(map[string]uint64)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var missing []Op
	for _, op := range d.ops {
		if op.Clock > highest[op.ReplicaID] {
			missing = append(missing, op)
		}
	}
	return binary.Marshal(wireEnvelope{Ops: missing})
}

// ApplyUpdate merges a foreign update into this document. Applying the
// same update twice is a no-op the second time, since ops are deduplicated
// by (ReplicaID, Clock).
func (d *Doc) ApplyUpdate(update []byte) error {
	var env wireEnvelope
	if err := binary.Unmarshal(update, &env); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, op := range env.Ops {
		d.appendOpLocked(op)
	}
	return nil
}
