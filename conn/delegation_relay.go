package conn

import (
	"parley/delegation"
	"parley/domain"
	"parley/wireproto"

	"github.com/google/uuid"
)

// delegationRelay forwards delegation engine events addressed to selfID back
// to this connection until its channel closes (on unregister or disconnect).
// Events the direct dispatch reply already delivered to the acting
// participant are suppressed here to avoid a duplicate frame.
func (h *Handler) delegationRelay(selfID uuid.UUID, events <-chan delegation.Event) {
	for ev := range events {
		if msg, ok := h.translateDelegation(selfID, ev); ok {
			h.send(msg)
		}
	}
}

// translateDelegation converts a delegation.Event into its wire frame for
// the connection registered as selfID, or reports ok=false if the event
// does not concern selfID or was already delivered as a direct reply.
func (h *Handler) translateDelegation(selfID uuid.UUID, ev delegation.Event) (wireproto.ServerMessage, bool) {
	switch ev.Kind {
	case delegation.EventParticipantRegistered:
		if ev.Participant.Participant.Id == selfID {
			return wireproto.ServerMessage{}, false
		}
		wrp := wireproto.FromRegistered(ev.Participant)
		return wireproto.ServerMessage{Type: wireproto.ServerParticipantRegistered, Registered: &wrp}, true

	case delegation.EventAcceptingWorkChanged:
		if ev.Participant.Participant.Id == selfID {
			return wireproto.ServerMessage{}, false
		}
		wrp := wireproto.FromRegistered(ev.Participant)
		return wireproto.ServerMessage{Type: wireproto.ServerAcceptingWorkChanged, Registered: &wrp}, true

	case delegation.EventWorkDelegated:
		if ev.WorkItem.AssigneeId != selfID {
			return wireproto.ServerMessage{}, false
		}
		wi := wireproto.FromWorkItem(ev.WorkItem)
		return wireproto.ServerMessage{Type: wireproto.ServerWorkDelegated, WorkItem: &wi}, true

	case delegation.EventWorkAccepted:
		if ev.WorkItem.DelegatorId != selfID || ev.WorkItem.AssigneeId == selfID {
			return wireproto.ServerMessage{}, false
		}
		wi := wireproto.FromWorkItem(ev.WorkItem)
		return wireproto.ServerMessage{Type: wireproto.ServerWorkAccepted, WorkItem: &wi}, true

	case delegation.EventWorkDeclined:
		if ev.WorkItem.DelegatorId != selfID || ev.WorkItem.AssigneeId == selfID {
			return wireproto.ServerMessage{}, false
		}
		wi := wireproto.FromWorkItem(ev.WorkItem)
		return wireproto.ServerMessage{Type: wireproto.ServerWorkDeclined, WorkItem: &wi}, true

	case delegation.EventWorkSubmitted:
		return h.translateWorkSubmitted(selfID, ev.WorkItem)

	case delegation.EventWorkApproved:
		return h.translateApprovalResolution(selfID, ev.Approval, wireproto.ServerWorkApproved)

	case delegation.EventWorkRejected:
		return h.translateApprovalResolution(selfID, ev.Approval, wireproto.ServerWorkRejected)

	case delegation.EventWorkCancelled:
		if ev.WorkItem.AssigneeId != selfID {
			return wireproto.ServerMessage{}, false
		}
		wi := wireproto.FromWorkItem(ev.WorkItem)
		return wireproto.ServerMessage{Type: wireproto.ServerWorkCancelled, WorkItem: &wi}, true

	case delegation.EventWorkClaimed:
		if ev.WorkItem.DelegatorId != selfID || ev.WorkItem.AssigneeId == selfID {
			return wireproto.ServerMessage{}, false
		}
		wi := wireproto.FromWorkItem(ev.WorkItem)
		return wireproto.ServerMessage{Type: wireproto.ServerWorkClaimed, WorkItem: &wi}, true

	default:
		return wireproto.ServerMessage{}, false
	}
}

// translateWorkSubmitted routes a submission to whichever side of it
// selfID is not: the approver if it now awaits approval, otherwise the
// delegator. The submitter already received a direct reply.
func (h *Handler) translateWorkSubmitted(selfID uuid.UUID, item domain.WorkItem) (wireproto.ServerMessage, bool) {
	if item.AssigneeId == selfID {
		return wireproto.ServerMessage{}, false
	}
	wi := wireproto.FromWorkItem(item)
	if item.Status == domain.WorkItemStatusAwaitingApproval {
		if item.ApproverId != selfID {
			return wireproto.ServerMessage{}, false
		}
		return wireproto.ServerMessage{Type: wireproto.ServerApprovalRequested, WorkItem: &wi}, true
	}
	if item.DelegatorId != selfID {
		return wireproto.ServerMessage{}, false
	}
	return wireproto.ServerMessage{Type: wireproto.ServerWorkApproved, WorkItem: &wi}, true
}

// translateApprovalResolution notifies a resolved approval's assignee,
// looking its work item up to learn who that is. The approver already
// received a direct reply.
func (h *Handler) translateApprovalResolution(selfID uuid.UUID, approval domain.ApprovalRequest, serverType wireproto.ServerType) (wireproto.ServerMessage, bool) {
	if approval.ApproverId == selfID {
		return wireproto.ServerMessage{}, false
	}
	item, ok := h.engine.GetWorkItem(approval.WorkItemId)
	if !ok || item.AssigneeId != selfID {
		return wireproto.ServerMessage{}, false
	}
	wa := wireproto.FromApproval(approval)
	return wireproto.ServerMessage{Type: serverType, Approval: &wa}, true
}
