package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestBlockTypeInitialStatus(t *testing.T) {
	assert.Equal(t, BlockStatusComplete, BlockTypeUser.InitialStatus())
	assert.Equal(t, BlockStatusPending, BlockTypeAssistant.InitialStatus())
}

func TestBlockStatusTerminal(t *testing.T) {
	assert.True(t, BlockStatusComplete.Terminal())
	assert.True(t, BlockStatusError.Terminal())
	assert.False(t, BlockStatusPending.Terminal())
	assert.False(t, BlockStatusStreaming.Terminal())
}

func TestParseBlockTypeRejectsUnknown(t *testing.T) {
	_, err := ParseBlockType("system")
	assert.Error(t, err)

	bt, err := ParseBlockType("assistant")
	assert.NoError(t, err)
	assert.Equal(t, BlockTypeAssistant, bt)
}

func TestParseBlockStatusRejectsUnknown(t *testing.T) {
	_, err := ParseBlockStatus("bogus")
	assert.Error(t, err)

	bs, err := ParseBlockStatus("streaming")
	assert.NoError(t, err)
	assert.Equal(t, BlockStatusStreaming, bs)
}

func TestColorFromIdIsDeterministic(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, ColorFromId(id), ColorFromId(id))
}

func TestNewParticipantDefaults(t *testing.T) {
	p := NewParticipant("alice", ParticipantKindUser)
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, ParticipantStatusActive, p.Status)
	assert.NotEqual(t, uuid.Nil, p.Id)
	assert.Equal(t, p.JoinedAt, p.LastSeenAt)
}

func TestCapabilitySetAdminImpliesAll(t *testing.T) {
	admin := NewCapabilitySet(CapabilityAdmin)
	assert.True(t, admin.Has(CapabilityApprove))
	assert.True(t, admin.Has(CapabilityDelegate))

	readOnly := NewCapabilitySet(CapabilityRead)
	assert.True(t, readOnly.Has(CapabilityRead))
	assert.False(t, readOnly.Has(CapabilitySubmit))
}

func TestDefaultCapabilitiesByKind(t *testing.T) {
	assert.True(t, DefaultCapabilities(ParticipantKindUser).Has(CapabilityApprove))
	assert.False(t, DefaultCapabilities(ParticipantKindAgent).Has(CapabilityApprove))
	assert.True(t, DefaultCapabilities(ParticipantKindObserver).Has(CapabilityRead))
	assert.False(t, DefaultCapabilities(ParticipantKindObserver).Has(CapabilitySubmit))
}

func TestRegisteredParticipantCanReceiveWork(t *testing.T) {
	rp := RegisteredParticipant{AcceptingWork: true, Capacity: 2, InFlight: 1}
	assert.True(t, rp.CanReceiveWork())

	rp.InFlight = 2
	assert.False(t, rp.CanReceiveWork())

	rp.InFlight = 0
	rp.AcceptingWork = false
	assert.False(t, rp.CanReceiveWork())
}
