package delegation

import (
	"parley/domain"

	"github.com/google/uuid"
)

// EventKind discriminates the payload carried by a delegation Event.
type EventKind string

const (
	EventParticipantRegistered   EventKind = "participant_registered"
	EventParticipantUnregistered EventKind = "participant_unregistered"
	EventCapabilitiesUpdated     EventKind = "capabilities_updated"
	EventAcceptingWorkChanged    EventKind = "accepting_work_changed"
	EventWorkDelegated           EventKind = "work_delegated"
	EventWorkAccepted            EventKind = "work_accepted"
	EventWorkDeclined            EventKind = "work_declined"
	EventWorkSubmitted           EventKind = "work_submitted"
	EventWorkApproved            EventKind = "work_approved"
	EventWorkRejected            EventKind = "work_rejected"
	EventWorkCancelled           EventKind = "work_cancelled"
	EventWorkClaimed             EventKind = "work_claimed"
)

// Event is one occurrence broadcast on an engine's event channel.
type Event struct {
	Kind EventKind

	Participant   domain.RegisteredParticipant // ParticipantRegistered, CapabilitiesUpdated, AcceptingWorkChanged
	ParticipantId uuid.UUID                    // ParticipantUnregistered

	WorkItem domain.WorkItem // WorkDelegated, WorkAccepted, WorkDeclined, WorkSubmitted, WorkCancelled

	Approval domain.ApprovalRequest // WorkApproved, WorkRejected
}
