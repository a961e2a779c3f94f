// Package pipeline orchestrates the streaming-response lifecycle: submit,
// fork, rerun, and cancel all persist lineage blocks, obtain or reuse an
// upstream session, and drive a block's pending→streaming→complete|error
// state machine while broadcasting every transition to the block's room.
package pipeline

import (
	"context"
	"sync"

	"parley/apperr"
	"parley/domain"
	"parley/room"
	"parley/upstream"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Pipeline ties the block store, the per-journal room registry, and the
// upstream AI client together.
type Pipeline struct {
	store    domain.BlockStorage
	rooms    *room.Manager
	upstream upstream.Client

	mu     sync.Mutex
	active map[uuid.UUID]context.CancelFunc // assistant block id -> stream cancel
}

func New(store domain.BlockStorage, rooms *room.Manager, upstreamClient upstream.Client) *Pipeline {
	return &Pipeline{
		store:    store,
		rooms:    rooms,
		upstream: upstreamClient,
		active:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// Submit persists a user block and a pending assistant block, then starts
// streaming the assistant's response in the background. sessionID may be
// empty, in which case a new upstream session is created.
func (p *Pipeline) Submit(ctx context.Context, journalID uuid.UUID, content, sessionID string) (domain.Block, domain.Block, error) {
	userBlock, err := p.store.CreateBlock(ctx, journalID, domain.BlockTypeUser, content, nil, nil)
	if err != nil {
		return domain.Block{}, domain.Block{}, err
	}
	p.room(journalID).PublishBlockCreated(userBlock)

	assistantBlock, err := p.store.CreateBlock(ctx, journalID, domain.BlockTypeAssistant, "", &userBlock.Id, nil)
	if err != nil {
		return domain.Block{}, domain.Block{}, err
	}
	p.room(journalID).PublishBlockCreated(assistantBlock)

	if err := p.startStream(journalID, assistantBlock, content, sessionID); err != nil {
		return domain.Block{}, domain.Block{}, err
	}
	return userBlock, assistantBlock, nil
}

// Fork branches a new user block off an existing one with its content,
// then runs the pipeline against the fork.
func (p *Pipeline) Fork(ctx context.Context, blockID uuid.UUID, sessionID string) (domain.Block, domain.Block, error) {
	forked, err := p.store.ForkBlock(ctx, blockID)
	if err != nil {
		return domain.Block{}, domain.Block{}, err
	}
	p.room(forked.JournalId).PublishBlockForked(blockID, forked)

	assistantBlock, err := p.store.CreateBlock(ctx, forked.JournalId, domain.BlockTypeAssistant, "", &forked.Id, nil)
	if err != nil {
		return domain.Block{}, domain.Block{}, err
	}
	p.room(forked.JournalId).PublishBlockCreated(assistantBlock)

	if err := p.startStream(forked.JournalId, assistantBlock, forked.Content, sessionID); err != nil {
		return domain.Block{}, domain.Block{}, err
	}
	return forked, assistantBlock, nil
}

// Rerun replays a prompt — for a user block the same content, for an
// assistant block the nearest preceding user block's content — as a new
// user block, then runs the pipeline against it.
func (p *Pipeline) Rerun(ctx context.Context, blockID uuid.UUID, sessionID string) (domain.Block, domain.Block, error) {
	rerun, err := p.store.RerunBlock(ctx, blockID)
	if err != nil {
		return domain.Block{}, domain.Block{}, err
	}
	p.room(rerun.JournalId).PublishBlockCreated(rerun)

	assistantBlock, err := p.store.CreateBlock(ctx, rerun.JournalId, domain.BlockTypeAssistant, "", &rerun.Id, nil)
	if err != nil {
		return domain.Block{}, domain.Block{}, err
	}
	p.room(rerun.JournalId).PublishBlockCreated(assistantBlock)

	if err := p.startStream(rerun.JournalId, assistantBlock, rerun.Content, sessionID); err != nil {
		return domain.Block{}, domain.Block{}, err
	}
	return rerun, assistantBlock, nil
}

// Cancel stops an in-flight assistant block's stream, if any, and marks
// the block errored. The stream's own goroutine notices its context was
// cancelled and exits without overwriting this status.
func (p *Pipeline) Cancel(ctx context.Context, blockID uuid.UUID) error {
	p.mu.Lock()
	cancel, ok := p.active[blockID]
	if ok {
		delete(p.active, blockID)
	}
	p.mu.Unlock()
	if ok {
		cancel()
	}

	block, err := p.store.GetBlock(ctx, blockID)
	if err != nil {
		return err
	}
	if err := p.store.UpdateBlockStatus(ctx, blockID, domain.BlockStatusError); err != nil {
		return err
	}

	r := p.room(block.JournalId)
	r.PublishBlockCancelled(blockID)
	r.PublishBlockStatusChanged(blockID, domain.BlockStatusError)
	return nil
}

func (p *Pipeline) room(journalID uuid.UUID) *room.Room {
	return p.rooms.GetOrCreate(journalID)
}

// startStream transitions the assistant block to streaming and spawns the
// background consumer. The stream runs detached from the request's
// context so it outlives the HTTP/WebSocket request that triggered it;
// Cancel is the only way to stop it early.
func (p *Pipeline) startStream(journalID uuid.UUID, assistantBlock domain.Block, prompt, sessionID string) error {
	streamCtx, cancel := context.WithCancel(context.Background())

	if sessionID == "" {
		session, err := p.upstream.CreateSession(streamCtx)
		if err != nil {
			cancel()
			return err
		}
		sessionID = session.Id
	}

	if err := p.store.UpdateBlockStatus(streamCtx, assistantBlock.Id, domain.BlockStatusStreaming); err != nil {
		cancel()
		return err
	}
	p.room(journalID).PublishBlockStatusChanged(assistantBlock.Id, domain.BlockStatusStreaming)

	events, err := p.upstream.SendMessage(streamCtx, sessionID, prompt)
	if err != nil {
		cancel()
		return err
	}

	p.mu.Lock()
	p.active[assistantBlock.Id] = cancel
	p.mu.Unlock()

	go p.consume(streamCtx, cancel, journalID, assistantBlock.Id, events)
	return nil
}

// consume drains the upstream event channel, persisting and broadcasting
// as each event arrives.
func (p *Pipeline) consume(ctx context.Context, cancel context.CancelFunc, journalID, blockID uuid.UUID, events <-chan upstream.StreamEvent) {
	defer cancel()
	defer func() {
		p.mu.Lock()
		delete(p.active, blockID)
		p.mu.Unlock()
	}()

	r := p.room(journalID)
	var buf []byte
	sawTerminal := false

	for event := range events {
		if ctx.Err() != nil {
			return
		}
		switch event.Kind {
		case upstream.StreamContent:
			buf = append(buf, event.Text...)
			r.PublishBlockContentDelta(blockID, event.Text)

		case upstream.StreamDone:
			sawTerminal = true
			if err := p.store.UpdateBlockContent(context.Background(), blockID, string(buf)); err != nil {
				log.Error().Err(err).Str("block_id", blockID.String()).Msg("failed to persist completed block content")
			}
			p.finish(r, blockID, domain.BlockStatusComplete)

		case upstream.StreamError:
			sawTerminal = true
			if err := p.store.UpdateBlockContent(context.Background(), blockID, event.ErrorMessage); err != nil {
				log.Error().Err(err).Str("block_id", blockID.String()).Msg("failed to persist error block content")
			}
			p.finish(r, blockID, domain.BlockStatusError)

		case upstream.StreamUnknown:
			// dropped silently, per the upstream event contract
		}
	}

	if !sawTerminal && ctx.Err() == nil {
		log.Warn().Str("block_id", blockID.String()).Msg("upstream stream ended without a terminal event")
		p.finish(r, blockID, domain.BlockStatusError)
	}
}

// finish persists a terminal status and broadcasts it, swallowing a
// not-found error raised by a concurrent cancel that already transitioned
// (and possibly deleted) this block.
func (p *Pipeline) finish(r *room.Room, blockID uuid.UUID, status domain.BlockStatus) {
	if err := p.store.UpdateBlockStatus(context.Background(), blockID, status); err != nil {
		if apperr.KindOf(err) != apperr.NotFound {
			log.Error().Err(err).Str("block_id", blockID.String()).Msg("failed to persist terminal block status")
		}
		return
	}
	r.PublishBlockStatusChanged(blockID, status)
}
