// Package conn implements the per-connection bidirectional session: frame
// dispatch, subscription/registration bookkeeping, and the self-suppressing
// event relay that forwards room and delegation broadcasts back to the
// client that didn't originate them.
package conn

import (
	"context"
	"encoding/json"
	"sync"

	"parley/apperr"
	"parley/delegation"
	"parley/domain"
	"parley/pipeline"
	"parley/room"
	"parley/wireproto"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Conn abstracts the outbound/inbound side of a live connection so tests can
// substitute a fake instead of a real *websocket.Conn.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	Close() error
}

type subscription struct {
	participantID uuid.UUID
	stop          func()
}

// Handler serves one connection's lifetime. It is not safe for concurrent
// use by more than one reader goroutine; outbound writes are safe for
// concurrent use by the dispatcher and any number of relay goroutines.
type Handler struct {
	conn    Conn
	writeMu sync.Mutex

	journals domain.JournalStorage
	blocks   domain.BlockStorage
	rooms    *room.Manager
	engine   *delegation.Engine
	pipe     *pipeline.Pipeline

	mu            sync.Mutex
	subscriptions map[uuid.UUID]subscription // journalId -> presence participant + relay stop
	registrations map[uuid.UUID]func()       // delegation participant id -> relay stop
}

// New builds a Handler bound to one connection's outbound/inbound channel.
func New(c Conn, journals domain.JournalStorage, blocks domain.BlockStorage, rooms *room.Manager, engine *delegation.Engine, pipe *pipeline.Pipeline) *Handler {
	return &Handler{
		conn:          c,
		journals:      journals,
		blocks:        blocks,
		rooms:         rooms,
		engine:        engine,
		pipe:          pipe,
		subscriptions: make(map[uuid.UUID]subscription),
		registrations: make(map[uuid.UUID]func()),
	}
}

// Serve reads frames until the connection errors or closes, dispatching
// each one, and unconditionally unwinds every subscription and registration
// on the way out.
func (h *Handler) Serve(ctx context.Context) {
	defer h.cleanup()

	for {
		_, raw, err := h.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wireproto.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.send(wireproto.ServerMessage{Type: wireproto.ServerError, Message: "malformed frame: " + err.Error()})
			continue
		}

		if err := h.dispatch(ctx, msg); err != nil {
			h.send(wireproto.ServerMessage{Type: wireproto.ServerError, Message: err.Error()})
		}
	}
}

// send writes one server frame, serializing concurrent writers behind
// writeMu so the dispatcher and every spawned relay can interleave safely.
func (h *Handler) send(msg wireproto.ServerMessage) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := h.conn.WriteJSON(msg); err != nil {
		log.Debug().Err(err).Msg("dropping outbound frame after write error")
	}
}

// requireOwnedParticipant confirms this connection registered
// participantID before letting a frame act on its behalf: the wire
// protocol derives the acting participant from the connection's
// registration, not from the unauthenticated id a client frame carries.
func (h *Handler) requireOwnedParticipant(participantID uuid.UUID) error {
	h.mu.Lock()
	_, ok := h.registrations[participantID]
	h.mu.Unlock()
	if !ok {
		return apperr.Unauthorizedf("participant %s is not registered on this connection", participantID)
	}
	return nil
}

// cleanup runs once, on Serve's return: every room this connection joined
// is left, and every delegation participant it registered is unregistered.
func (h *Handler) cleanup() {
	h.mu.Lock()
	subs := h.subscriptions
	h.subscriptions = make(map[uuid.UUID]subscription)
	regs := h.registrations
	h.registrations = make(map[uuid.UUID]func())
	h.mu.Unlock()

	for journalID, sub := range subs {
		sub.stop()
		if r, ok := h.rooms.Get(journalID); ok {
			r.Leave(sub.participantID)
		}
	}
	for participantID, stop := range regs {
		stop()
		if err := h.engine.UnregisterParticipant(participantID); err != nil {
			log.Debug().Err(err).Str("participant_id", participantID.String()).Msg("unregister on disconnect")
		}
	}
}
