package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"parley/apperr"
	"parley/domain"
	"parley/room"
	"parley/upstream"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal in-memory domain.BlockStorage for pipeline tests.
type fakeStore struct {
	mu     sync.Mutex
	blocks map[uuid.UUID]domain.Block
}

func newFakeStore() *fakeStore {
	return &fakeStore{blocks: make(map[uuid.UUID]domain.Block)}
}

func (s *fakeStore) CreateBlock(_ context.Context, journalId uuid.UUID, blockType domain.BlockType, content string, parentId, forkedFromId *uuid.UUID) (domain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	b := domain.Block{
		Id:           uuid.New(),
		JournalId:    journalId,
		BlockType:    blockType,
		Content:      content,
		Status:       blockType.InitialStatus(),
		ParentId:     parentId,
		ForkedFromId: forkedFromId,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.blocks[b.Id] = b
	return b, nil
}

func (s *fakeStore) GetBlock(_ context.Context, id uuid.UUID) (domain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[id]
	if !ok {
		return domain.Block{}, apperr.NotFoundf("block %s not found", id)
	}
	return b, nil
}

func (s *fakeStore) GetBlocksForJournal(_ context.Context, journalId uuid.UUID) ([]domain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Block
	for _, b := range s.blocks {
		if b.JournalId == journalId {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateBlockContent(_ context.Context, id uuid.UUID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[id]
	if !ok {
		return apperr.NotFoundf("block %s not found", id)
	}
	b.Content = content
	s.blocks[id] = b
	return nil
}

func (s *fakeStore) UpdateBlockStatus(_ context.Context, id uuid.UUID, status domain.BlockStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[id]
	if !ok {
		return apperr.NotFoundf("block %s not found", id)
	}
	b.Status = status
	s.blocks[id] = b
	return nil
}

func (s *fakeStore) ForkBlock(ctx context.Context, id uuid.UUID) (domain.Block, error) {
	orig, err := s.GetBlock(ctx, id)
	if err != nil {
		return domain.Block{}, err
	}
	return s.CreateBlock(ctx, orig.JournalId, domain.BlockTypeUser, orig.Content, &id, &id)
}

func (s *fakeStore) RerunBlock(ctx context.Context, id uuid.UUID) (domain.Block, error) {
	return s.ForkBlock(ctx, id)
}

func (s *fakeStore) GetForks(_ context.Context, id uuid.UUID) ([]domain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Block
	for _, b := range s.blocks {
		if b.ForkedFromId != nil && *b.ForkedFromId == id {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *fakeStore) GetChildren(_ context.Context, id uuid.UUID) ([]domain.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Block
	for _, b := range s.blocks {
		if b.ParentId != nil && *b.ParentId == id {
			out = append(out, b)
		}
	}
	return out, nil
}

// fakeUpstream replays a fixed event sequence for every session.
type fakeUpstream struct {
	sessionID string
	events    []upstream.StreamEvent
}

func (f *fakeUpstream) CreateSession(context.Context) (upstream.Session, error) {
	return upstream.Session{Id: f.sessionID}, nil
}

func (f *fakeUpstream) SendMessage(context.Context, string, string) (<-chan upstream.StreamEvent, error) {
	ch := make(chan upstream.StreamEvent, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func (f *fakeUpstream) SubscribeEvents(context.Context, string) (<-chan upstream.StreamEvent, error) {
	return f.SendMessage(context.Background(), "", "")
}

func waitForStatus(t *testing.T, store *fakeStore, blockID uuid.UUID, want domain.BlockStatus) domain.Block {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		b, err := store.GetBlock(context.Background(), blockID)
		require.NoError(t, err)
		if b.Status == want {
			return b
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("block %s never reached status %s", blockID, want)
	return domain.Block{}
}

func TestSubmit_StreamsToCompletion(t *testing.T) {
	store := newFakeStore()
	rooms := room.NewManager()
	up := &fakeUpstream{sessionID: "s1", events: []upstream.StreamEvent{
		{Kind: upstream.StreamContent, Text: "hel"},
		{Kind: upstream.StreamContent, Text: "lo"},
		{Kind: upstream.StreamDone},
	}}
	p := New(store, rooms, up)

	journalID := uuid.New()
	userBlock, assistantBlock, err := p.Submit(context.Background(), journalID, "hi", "")
	require.NoError(t, err)
	assert.Equal(t, domain.BlockStatusComplete, userBlock.Status)

	final := waitForStatus(t, store, assistantBlock.Id, domain.BlockStatusComplete)
	assert.Equal(t, "hello", final.Content)
}

func TestSubmit_UpstreamErrorEvent(t *testing.T) {
	store := newFakeStore()
	rooms := room.NewManager()
	up := &fakeUpstream{sessionID: "s1", events: []upstream.StreamEvent{
		{Kind: upstream.StreamError, ErrorMessage: "boom"},
	}}
	p := New(store, rooms, up)

	_, assistantBlock, err := p.Submit(context.Background(), uuid.New(), "hi", "")
	require.NoError(t, err)

	final := waitForStatus(t, store, assistantBlock.Id, domain.BlockStatusError)
	assert.Equal(t, "boom", final.Content)
}

func TestFork_ReplaysSourceContent(t *testing.T) {
	store := newFakeStore()
	rooms := room.NewManager()
	journalID := uuid.New()
	source, err := store.CreateBlock(context.Background(), journalID, domain.BlockTypeUser, "original text", nil, nil)
	require.NoError(t, err)

	up := &fakeUpstream{sessionID: "s1", events: []upstream.StreamEvent{{Kind: upstream.StreamDone}}}
	p := New(store, rooms, up)

	forked, assistantBlock, err := p.Fork(context.Background(), source.Id, "")
	require.NoError(t, err)
	assert.Equal(t, "original text", forked.Content)
	assert.Equal(t, &source.Id, forked.ForkedFromId)

	waitForStatus(t, store, assistantBlock.Id, domain.BlockStatusComplete)
}

func TestCancel_MarksBlockError(t *testing.T) {
	store := newFakeStore()
	rooms := room.NewManager()
	journalID := uuid.New()
	assistantBlock, err := store.CreateBlock(context.Background(), journalID, domain.BlockTypeAssistant, "", nil, nil)
	require.NoError(t, err)

	up := &fakeUpstream{sessionID: "s1"}
	p := New(store, rooms, up)

	require.NoError(t, p.Cancel(context.Background(), assistantBlock.Id))

	final, err := store.GetBlock(context.Background(), assistantBlock.Id)
	require.NoError(t, err)
	assert.Equal(t, domain.BlockStatusError, final.Status)
}
