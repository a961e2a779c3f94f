package domain

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantKind distinguishes how a participant acts within a journal.
type ParticipantKind string

const (
	ParticipantKindUser     ParticipantKind = "user"
	ParticipantKindAgent    ParticipantKind = "agent"
	ParticipantKindObserver ParticipantKind = "observer"
)

func (k ParticipantKind) Valid() bool {
	switch k {
	case ParticipantKindUser, ParticipantKindAgent, ParticipantKindObserver:
		return true
	}
	return false
}

// ParticipantStatus is a presence participant's connection liveness.
type ParticipantStatus string

const (
	ParticipantStatusActive       ParticipantStatus = "active"
	ParticipantStatusIdle         ParticipantStatus = "idle"
	ParticipantStatusDisconnected ParticipantStatus = "disconnected"
)

// Cursor locates a participant's caret within a journal.
type Cursor struct {
	BlockId *uuid.UUID `json:"blockId,omitempty"`
	Offset  *int       `json:"offset,omitempty"`
}

// Participant is presence: who is currently watching or editing a journal.
type Participant struct {
	Id         uuid.UUID         `json:"id"`
	Name       string            `json:"name"`
	Kind       ParticipantKind   `json:"kind"`
	Status     ParticipantStatus `json:"status"`
	Cursor     *Cursor           `json:"cursor,omitempty"`
	Color      string            `json:"color"`
	JoinedAt   time.Time         `json:"joinedAt"`
	LastSeenAt time.Time         `json:"lastSeenAt"`
}

// ColorFromId derives a deterministic display color from the first byte of
// an identifier, so the same participant id always renders the same color.
func ColorFromId(id uuid.UUID) string {
	palette := [...]string{
		"#e6194b", "#3cb44b", "#ffe119", "#4363d8", "#f58231",
		"#911eb4", "#46f0f0", "#f032e6", "#bcf60c", "#fabebe",
		"#008080", "#e6beff", "#9a6324", "#fffac8", "#800000",
	}
	idx := int(id[0]) % len(palette)
	return palette[idx]
}

// NewParticipant builds a freshly joined, active presence participant.
func NewParticipant(name string, kind ParticipantKind) Participant {
	id := uuid.New()
	now := time.Now().UTC()
	return Participant{
		Id:         id,
		Name:       name,
		Kind:       kind,
		Status:     ParticipantStatusActive,
		Color:      ColorFromId(id),
		JoinedAt:   now,
		LastSeenAt: now,
	}
}

// Capability is a named permission token held by a registered participant.
type Capability string

const (
	CapabilityRead     Capability = "read"
	CapabilitySubmit   Capability = "submit"
	CapabilityFork     Capability = "fork"
	CapabilityDelegate Capability = "delegate"
	CapabilityApprove  Capability = "approve"
	CapabilityAdmin    Capability = "admin"
)

// CapabilitySet is an unordered collection of capabilities with an
// admin-implies-all override baked into membership checks.
type CapabilitySet map[Capability]struct{}

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether the set grants c, honoring that admin implicitly
// grants every other capability.
func (s CapabilitySet) Has(c Capability) bool {
	if _, ok := s[CapabilityAdmin]; ok {
		return true
	}
	_, ok := s[c]
	return ok
}

func (s CapabilitySet) Slice() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}

// DefaultCapabilities returns the capability set a newly registered
// participant of kind k receives absent an explicit override.
func DefaultCapabilities(kind ParticipantKind) CapabilitySet {
	switch kind {
	case ParticipantKindUser:
		return NewCapabilitySet(CapabilityRead, CapabilitySubmit, CapabilityFork, CapabilityDelegate, CapabilityApprove)
	case ParticipantKindAgent:
		return NewCapabilitySet(CapabilityRead, CapabilitySubmit, CapabilityFork, CapabilityDelegate)
	case ParticipantKindObserver:
		return NewCapabilitySet(CapabilityRead)
	default:
		return NewCapabilitySet()
	}
}

// DefaultCapacity returns the default concurrent-work-item capacity for a
// newly registered participant of kind k.
func DefaultCapacity(kind ParticipantKind) int {
	switch kind {
	case ParticipantKindUser:
		return 5
	case ParticipantKindAgent:
		return 10
	default:
		return 0
	}
}

// RegisteredParticipant wraps a presence participant with delegation-engine
// state. Its lifecycle is independent from room presence.
type RegisteredParticipant struct {
	Participant   Participant
	Capabilities  CapabilitySet
	AcceptingWork bool
	Capacity      int
	InFlight      int
}

// CanReceiveWork reports whether this participant may be delegated more
// work right now.
func (p RegisteredParticipant) CanReceiveWork() bool {
	return p.AcceptingWork && p.InFlight < p.Capacity
}
