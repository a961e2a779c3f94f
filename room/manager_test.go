package room

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReturnsSameRoom(t *testing.T) {
	m := NewManager()
	jid := uuid.New()

	r1 := m.GetOrCreate(jid)
	r2 := m.GetOrCreate(jid)
	assert.Same(t, r1, r2)
	assert.Equal(t, 1, m.RoomCount())
}

func TestCleanupEmptyRoomsRemovesOnlyEmptyOnes(t *testing.T) {
	m := NewManager()
	empty := m.GetOrCreate(uuid.New())
	occupied := m.GetOrCreate(uuid.New())
	occupied.Join("alice", "user")

	m.CleanupEmptyRooms()

	_, ok := m.Get(empty.JournalID())
	assert.False(t, ok)

	_, ok = m.Get(occupied.JournalID())
	require.True(t, ok)
}
