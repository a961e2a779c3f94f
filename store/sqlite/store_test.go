package sqlite

import (
	"context"
	"testing"

	"parley/apperr"
	"parley/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	client, err := NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewStore(client)
}

func TestCreateAndGetJournal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	j, err := s.CreateJournal(ctx, "My Journal")
	require.NoError(t, err)
	assert.Equal(t, "My Journal", j.Title)

	got, err := s.GetJournal(ctx, j.Id)
	require.NoError(t, err)
	assert.Equal(t, j.Id, got.Id)
}

func TestCreateJournalDefaultsTitle(t *testing.T) {
	s := newTestStore(t)
	j, err := s.CreateJournal(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultJournalTitle, j.Title)
}

func TestGetJournalNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetJournal(context.Background(), uuid.New())
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestListJournalsOrderedByUpdatedAtDesc(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	j1, err := s.CreateJournal(ctx, "first")
	require.NoError(t, err)
	j2, err := s.CreateJournal(ctx, "second")
	require.NoError(t, err)

	// touch j1 so it becomes the most recently updated
	_, err = s.CreateBlock(ctx, j1.Id, domain.BlockTypeUser, "hi", nil, nil)
	require.NoError(t, err)

	journals, err := s.ListJournals(ctx)
	require.NoError(t, err)
	require.Len(t, journals, 2)
	assert.Equal(t, j1.Id, journals[0].Id)
	assert.Equal(t, j2.Id, journals[1].Id)
}

func TestCreateBlockTouchesParentJournal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	j, err := s.CreateJournal(ctx, "parent")
	require.NoError(t, err)
	before := j.UpdatedAt

	_, err = s.CreateBlock(ctx, j.Id, domain.BlockTypeUser, "content", nil, nil)
	require.NoError(t, err)

	after, err := s.GetJournal(ctx, j.Id)
	require.NoError(t, err)
	assert.True(t, !after.UpdatedAt.Before(before))
}

func TestForkBlockSetsLineage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	j, err := s.CreateJournal(ctx, "j")
	require.NoError(t, err)
	orig, err := s.CreateBlock(ctx, j.Id, domain.BlockTypeUser, "hello", nil, nil)
	require.NoError(t, err)

	fork, err := s.ForkBlock(ctx, orig.Id)
	require.NoError(t, err)
	assert.Equal(t, "hello", fork.Content)
	require.NotNil(t, fork.ForkedFromId)
	assert.Equal(t, orig.Id, *fork.ForkedFromId)

	forks, err := s.GetForks(ctx, orig.Id)
	require.NoError(t, err)
	require.Len(t, forks, 1)
	assert.Equal(t, fork.Id, forks[0].Id)
}

func TestRerunAssistantBlockReplaysPrecedingUserContent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	j, err := s.CreateJournal(ctx, "j")
	require.NoError(t, err)
	userBlock, err := s.CreateBlock(ctx, j.Id, domain.BlockTypeUser, "what is 2+2", nil, nil)
	require.NoError(t, err)
	assistantBlock, err := s.CreateBlock(ctx, j.Id, domain.BlockTypeAssistant, "4", &userBlock.Id, nil)
	require.NoError(t, err)

	rerun, err := s.RerunBlock(ctx, assistantBlock.Id)
	require.NoError(t, err)
	assert.Equal(t, "what is 2+2", rerun.Content)
	assert.Equal(t, domain.BlockTypeUser, rerun.BlockType)
}

func TestRerunNotFoundWhenBlockMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RerunBlock(context.Background(), uuid.New())
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestUpdateBlockStatusRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	j, err := s.CreateJournal(ctx, "j")
	require.NoError(t, err)
	b, err := s.CreateBlock(ctx, j.Id, domain.BlockTypeAssistant, "", nil, nil)
	require.NoError(t, err)

	err = s.UpdateBlockStatus(ctx, b.Id, "bogus")
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
}

func TestUpdateBlockContentNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateBlockContent(context.Background(), uuid.New(), "x")
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}
