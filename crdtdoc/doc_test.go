package crdtdoc

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetAndAppendBlockContent(t *testing.T) {
	d := New("replica-a")
	block := uuid.New()

	d.SetBlockContent(block, "hello")
	d.AppendBlockContent(block, " world")

	assert.Equal(t, "hello world", d.GetBlockContent(block))
}

func TestDeleteBlockClearsContentAndListing(t *testing.T) {
	d := New("replica-a")
	block := uuid.New()

	d.SetBlockContent(block, "hello")
	require.Contains(t, d.ListBlocks(), block)

	d.DeleteBlock(block)
	assert.Equal(t, "", d.GetBlockContent(block))
	assert.NotContains(t, d.ListBlocks(), block)
}

func TestApplyUpdateMergesConcurrentReplicas(t *testing.T) {
	a := New("replica-a")
	b := New("replica-b")
	block := uuid.New()

	a.SetBlockContent(block, "from a")
	b.SetBlockContent(block, "from b")

	updateFromA, err := a.EncodeState()
	require.NoError(t, err)
	require.NoError(t, b.ApplyUpdate(updateFromA))

	updateFromB, err := b.EncodeState()
	require.NoError(t, err)
	require.NoError(t, a.ApplyUpdate(updateFromB))

	assert.Equal(t, a.GetBlockContent(block), b.GetBlockContent(block))
}

func TestApplyUpdateIsIdempotent(t *testing.T) {
	a := New("replica-a")
	b := New("replica-b")
	block := uuid.New()

	a.SetBlockContent(block, "hello")
	update, err := a.EncodeState()
	require.NoError(t, err)

	require.NoError(t, b.ApplyUpdate(update))
	first := b.GetBlockContent(block)

	require.NoError(t, b.ApplyUpdate(update))
	assert.Equal(t, first, b.GetBlockContent(block))
}

func TestEncodeDiffOnlyReturnsMissingOps(t *testing.T) {
	a := New("replica-a")
	block := uuid.New()
	a.SetBlockContent(block, "v1")

	b := New("replica-b")
	sv, err := b.StateVector()
	require.NoError(t, err)

	diff, err := a.EncodeDiff(sv)
	require.NoError(t, err)
	require.NoError(t, b.ApplyUpdate(diff))
	assert.Equal(t, "v1", b.GetBlockContent(block))

	a.AppendBlockContent(block, "+v2")
	sv2, err := b.StateVector()
	require.NoError(t, err)
	diff2, err := a.EncodeDiff(sv2)
	require.NoError(t, err)
	require.NoError(t, b.ApplyUpdate(diff2))
	assert.Equal(t, "v1+v2", b.GetBlockContent(block))
}
