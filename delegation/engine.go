// Package delegation implements the work-item delegation and approval
// engine: participant capability registry, delegate/accept/decline/submit/
// approve/reject/cancel/claim transitions, and the per-participant FIFO
// work and approval queues that back them.
package delegation

import (
	"sync"
	"time"

	"parley/apperr"
	"parley/domain"

	"github.com/google/uuid"
)

// Engine holds every registered participant, work item, and approval
// request, across all journals, plus the FIFO queues derived from their
// statuses. Its five maps are guarded by four locks (the two queue maps
// share one) acquired in a fixed order — participants, then items, then
// approvals, then queues — to avoid deadlock when an operation must touch
// more than one.
type Engine struct {
	hub *hub

	participantsMu sync.RWMutex
	participants   map[uuid.UUID]domain.RegisteredParticipant

	itemsMu sync.RWMutex
	items   map[uuid.UUID]domain.WorkItem

	approvalsMu sync.RWMutex
	approvals   map[uuid.UUID]domain.ApprovalRequest

	queuesMu       sync.RWMutex
	workQueues     map[uuid.UUID][]uuid.UUID // assigneeId -> work item ids, insertion order
	approvalQueues map[uuid.UUID][]uuid.UUID // approverId -> approval ids, insertion order
}

func NewEngine() *Engine {
	return &Engine{
		hub:            newHub(),
		participants:   make(map[uuid.UUID]domain.RegisteredParticipant),
		items:          make(map[uuid.UUID]domain.WorkItem),
		approvals:      make(map[uuid.UUID]domain.ApprovalRequest),
		workQueues:     make(map[uuid.UUID][]uuid.UUID),
		approvalQueues: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Subscribe returns a channel of this engine's events and a function to
// stop receiving them.
func (e *Engine) Subscribe() (<-chan Event, func()) {
	return e.hub.subscribe()
}

// RegisterParticipant registers a participant with the default capability
// set and capacity for its kind.
func (e *Engine) RegisterParticipant(name string, kind domain.ParticipantKind) domain.RegisteredParticipant {
	return e.RegisterParticipantWithCapabilities(name, kind, domain.DefaultCapabilities(kind), domain.DefaultCapacity(kind))
}

// RegisterParticipantWithCapabilities registers a participant with an
// explicit capability set and capacity override.
func (e *Engine) RegisterParticipantWithCapabilities(name string, kind domain.ParticipantKind, caps domain.CapabilitySet, capacity int) domain.RegisteredParticipant {
	rp := domain.RegisteredParticipant{
		Participant:   domain.NewParticipant(name, kind),
		Capabilities:  caps,
		AcceptingWork: kind != domain.ParticipantKindObserver,
		Capacity:      capacity,
	}

	e.participantsMu.Lock()
	e.participants[rp.Participant.Id] = rp
	e.participantsMu.Unlock()

	e.hub.publish(Event{Kind: EventParticipantRegistered, Participant: rp})
	return rp
}

// GetParticipant returns one registered participant by id.
func (e *Engine) GetParticipant(id uuid.UUID) (domain.RegisteredParticipant, bool) {
	e.participantsMu.RLock()
	defer e.participantsMu.RUnlock()
	rp, ok := e.participants[id]
	return rp, ok
}

// ListParticipants returns a snapshot of every registered participant.
func (e *Engine) ListParticipants() []domain.RegisteredParticipant {
	e.participantsMu.RLock()
	defer e.participantsMu.RUnlock()

	out := make([]domain.RegisteredParticipant, 0, len(e.participants))
	for _, rp := range e.participants {
		out = append(out, rp)
	}
	return out
}

// ListAvailableParticipants returns every participant currently willing
// and able to receive more work.
func (e *Engine) ListAvailableParticipants() []domain.RegisteredParticipant {
	e.participantsMu.RLock()
	defer e.participantsMu.RUnlock()

	var out []domain.RegisteredParticipant
	for _, rp := range e.participants {
		if rp.CanReceiveWork() {
			out = append(out, rp)
		}
	}
	return out
}

// UnregisterParticipant removes a participant from the registry. It does
// not touch that participant's existing work items or queues.
func (e *Engine) UnregisterParticipant(id uuid.UUID) error {
	e.participantsMu.Lock()
	_, ok := e.participants[id]
	if ok {
		delete(e.participants, id)
	}
	e.participantsMu.Unlock()

	if !ok {
		return apperr.NotFoundf("participant %s not found", id)
	}
	e.hub.publish(Event{Kind: EventParticipantUnregistered, ParticipantId: id})
	return nil
}

// UpdateCapabilities replaces a participant's capability set.
func (e *Engine) UpdateCapabilities(id uuid.UUID, caps domain.CapabilitySet) (domain.RegisteredParticipant, error) {
	e.participantsMu.Lock()
	rp, ok := e.participants[id]
	if !ok {
		e.participantsMu.Unlock()
		return domain.RegisteredParticipant{}, apperr.NotFoundf("participant %s not found", id)
	}
	rp.Capabilities = caps
	e.participants[id] = rp
	e.participantsMu.Unlock()

	e.hub.publish(Event{Kind: EventCapabilitiesUpdated, Participant: rp})
	return rp, nil
}

// SetAcceptingWork toggles whether a participant may be delegated more
// work.
func (e *Engine) SetAcceptingWork(id uuid.UUID, accepting bool) (domain.RegisteredParticipant, error) {
	e.participantsMu.Lock()
	rp, ok := e.participants[id]
	if !ok {
		e.participantsMu.Unlock()
		return domain.RegisteredParticipant{}, apperr.NotFoundf("participant %s not found", id)
	}
	rp.AcceptingWork = accepting
	e.participants[id] = rp
	e.participantsMu.Unlock()

	e.hub.publish(Event{Kind: EventAcceptingWorkChanged, Participant: rp})
	return rp, nil
}

// DelegateInput carries every field needed to create a new work item.
type DelegateInput struct {
	JournalId        uuid.UUID
	DelegatorId      uuid.UUID
	AssigneeId       uuid.UUID
	Description      string
	BlockId          *uuid.UUID
	Priority         domain.WorkItemPriority
	RequiresApproval bool
	ApproverId       uuid.UUID
}

// Delegate creates a new work item assigned to in.AssigneeId and appends
// it to that participant's work queue. The delegator must hold
// CapabilityDelegate; the assignee must exist and currently accept work.
// When in.ApproverId is unset, the delegator becomes the approver.
func (e *Engine) Delegate(in DelegateInput) (domain.WorkItem, error) {
	e.participantsMu.RLock()
	delegator, delegatorOK := e.participants[in.DelegatorId]
	assignee, assigneeOK := e.participants[in.AssigneeId]
	e.participantsMu.RUnlock()

	if !delegatorOK {
		return domain.WorkItem{}, apperr.NotFoundf("delegator %s not found", in.DelegatorId)
	}
	if !assigneeOK {
		return domain.WorkItem{}, apperr.NotFoundf("assignee %s not found", in.AssigneeId)
	}
	if !delegator.Capabilities.Has(domain.CapabilityDelegate) {
		return domain.WorkItem{}, apperr.Unauthorizedf("participant %s lacks the delegate capability", in.DelegatorId)
	}
	if !assignee.CanReceiveWork() {
		return domain.WorkItem{}, apperr.NotAcceptingWorkf("participant %s is not accepting work", in.AssigneeId)
	}

	approverID := in.ApproverId
	if approverID == uuid.Nil {
		approverID = in.DelegatorId
	}

	now := time.Now().UTC()
	item := domain.WorkItem{
		Id:               uuid.New(),
		JournalId:        in.JournalId,
		Description:      in.Description,
		BlockId:          in.BlockId,
		DelegatorId:      in.DelegatorId,
		AssigneeId:       in.AssigneeId,
		Status:           domain.WorkItemStatusPending,
		Priority:         in.Priority,
		RequiresApproval: in.RequiresApproval,
		ApproverId:       approverID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	e.itemsMu.Lock()
	e.items[item.Id] = item
	e.itemsMu.Unlock()

	e.queuesMu.Lock()
	e.workQueues[in.AssigneeId] = append(e.workQueues[in.AssigneeId], item.Id)
	e.queuesMu.Unlock()

	e.participantsMu.Lock()
	if rp, ok := e.participants[in.AssigneeId]; ok {
		rp.InFlight++
		e.participants[in.AssigneeId] = rp
	}
	e.participantsMu.Unlock()

	e.hub.publish(Event{Kind: EventWorkDelegated, WorkItem: item})
	return item, nil
}

// AcceptWork transitions a pending work item assigned to participantID
// into in-progress, removing it from that participant's work queue.
func (e *Engine) AcceptWork(workItemID, participantID uuid.UUID) (domain.WorkItem, error) {
	item, err := e.transitionItem(workItemID, func(item domain.WorkItem) (domain.WorkItem, error) {
		if item.AssigneeId != participantID {
			return item, apperr.Unauthorizedf("work item %s is not assigned to %s", workItemID, participantID)
		}
		if item.Status != domain.WorkItemStatusPending {
			return item, apperr.BadRequestf("work item %s is not pending", workItemID)
		}
		item.Status = domain.WorkItemStatusInProgress
		return item, nil
	})
	if err != nil {
		return domain.WorkItem{}, err
	}

	e.removeFromQueueLocked(&e.workQueues, participantID, workItemID)
	e.hub.publish(Event{Kind: EventWorkAccepted, WorkItem: item})
	return item, nil
}

// DeclineWork terminally declines a pending work item, removing it from
// the assignee's work queue and freeing their capacity.
func (e *Engine) DeclineWork(workItemID, participantID uuid.UUID) (domain.WorkItem, error) {
	item, err := e.transitionItem(workItemID, func(item domain.WorkItem) (domain.WorkItem, error) {
		if item.AssigneeId != participantID {
			return item, apperr.Unauthorizedf("work item %s is not assigned to %s", workItemID, participantID)
		}
		if item.Status != domain.WorkItemStatusPending {
			return item, apperr.BadRequestf("work item %s is not pending", workItemID)
		}
		item.Status = domain.WorkItemStatusDeclined
		return item, nil
	})
	if err != nil {
		return domain.WorkItem{}, err
	}

	e.removeFromQueueLocked(&e.workQueues, participantID, workItemID)
	e.releaseCapacity(participantID)
	e.hub.publish(Event{Kind: EventWorkDeclined, WorkItem: item})
	return item, nil
}

// ClaimWork reassigns a pending work item from its current assignee's
// queue to claimerID's queue, leaving it pending. claimerID must be able
// to receive more work.
func (e *Engine) ClaimWork(workItemID, claimerID uuid.UUID) (domain.WorkItem, error) {
	e.participantsMu.RLock()
	claimer, ok := e.participants[claimerID]
	e.participantsMu.RUnlock()
	if !ok {
		return domain.WorkItem{}, apperr.NotFoundf("participant %s not found", claimerID)
	}
	if !claimer.CanReceiveWork() {
		return domain.WorkItem{}, apperr.NotAcceptingWorkf("participant %s is not accepting work", claimerID)
	}

	var previousAssignee uuid.UUID
	item, err := e.transitionItem(workItemID, func(item domain.WorkItem) (domain.WorkItem, error) {
		if item.Status != domain.WorkItemStatusPending {
			return item, apperr.BadRequestf("work item %s is not pending", workItemID)
		}
		previousAssignee = item.AssigneeId
		item.AssigneeId = claimerID
		return item, nil
	})
	if err != nil {
		return domain.WorkItem{}, err
	}

	e.queuesMu.Lock()
	e.removeFromQueueNoLock(e.workQueues, previousAssignee, workItemID)
	e.workQueues[claimerID] = append(e.workQueues[claimerID], workItemID)
	e.queuesMu.Unlock()

	e.participantsMu.Lock()
	if rp, ok := e.participants[previousAssignee]; ok && rp.InFlight > 0 {
		rp.InFlight--
		e.participants[previousAssignee] = rp
	}
	if rp, ok := e.participants[claimerID]; ok {
		rp.InFlight++
		e.participants[claimerID] = rp
	}
	e.participantsMu.Unlock()

	e.hub.publish(Event{Kind: EventWorkClaimed, WorkItem: item})
	return item, nil
}

// SubmitWork records a result for an active work item. If the item
// requires approval it moves to awaiting-approval and a new approval
// request is queued for the approver; otherwise it is approved outright.
func (e *Engine) SubmitWork(workItemID, participantID uuid.UUID, result string) (domain.WorkItem, error) {
	var approverID uuid.UUID
	var needsApproval bool

	item, err := e.transitionItem(workItemID, func(item domain.WorkItem) (domain.WorkItem, error) {
		if item.AssigneeId != participantID {
			return item, apperr.Unauthorizedf("work item %s is not assigned to %s", workItemID, participantID)
		}
		if !item.Status.Active() {
			return item, apperr.BadRequestf("work item %s is not active", workItemID)
		}
		item.Result = &result
		needsApproval = item.RequiresApproval
		approverID = item.ApproverId
		if needsApproval {
			item.Status = domain.WorkItemStatusAwaitingApproval
		} else {
			item.Status = domain.WorkItemStatusApproved
		}
		return item, nil
	})
	if err != nil {
		return domain.WorkItem{}, err
	}

	e.removeFromQueueLocked(&e.workQueues, participantID, workItemID)

	if !needsApproval {
		e.releaseCapacity(participantID)
		e.hub.publish(Event{Kind: EventWorkSubmitted, WorkItem: item})
		return item, nil
	}

	now := time.Now().UTC()
	approval := domain.ApprovalRequest{
		Id:          uuid.New(),
		WorkItemId:  item.Id,
		RequesterId: participantID,
		ApproverId:  approverID,
		Status:      domain.ApprovalStatusPending,
		CreatedAt:   now,
	}

	e.approvalsMu.Lock()
	e.approvals[approval.Id] = approval
	e.approvalsMu.Unlock()

	e.queuesMu.Lock()
	e.approvalQueues[approverID] = append(e.approvalQueues[approverID], approval.Id)
	e.queuesMu.Unlock()

	e.hub.publish(Event{Kind: EventWorkSubmitted, WorkItem: item})
	return item, nil
}

// Approve accepts a pending approval request, marking the underlying work
// item approved and freeing the assignee's capacity. feedback is optional
// commentary from the approver.
func (e *Engine) Approve(approvalID, approverID uuid.UUID, feedback *string) (domain.ApprovalRequest, error) {
	approval, workItemID, err := e.resolveApproval(approvalID, approverID)
	if err != nil {
		return domain.ApprovalRequest{}, err
	}

	now := time.Now().UTC()
	approval.Status = domain.ApprovalStatusApproved
	approval.Feedback = feedback
	approval.ResolvedAt = &now

	e.approvalsMu.Lock()
	e.approvals[approvalID] = approval
	e.approvalsMu.Unlock()

	item, err := e.transitionItem(workItemID, func(item domain.WorkItem) (domain.WorkItem, error) {
		item.Status = domain.WorkItemStatusApproved
		return item, nil
	})
	if err != nil {
		return domain.ApprovalRequest{}, err
	}

	e.removeFromQueueLocked(&e.approvalQueues, approverID, approvalID)
	e.releaseCapacity(item.AssigneeId)
	e.hub.publish(Event{Kind: EventWorkApproved, Approval: approval})
	return approval, nil
}

// Reject rejects a pending approval request with feedback, returning the
// underlying work item to its assignee's work queue for revision.
func (e *Engine) Reject(approvalID, approverID uuid.UUID, feedback string) (domain.ApprovalRequest, error) {
	approval, workItemID, err := e.resolveApproval(approvalID, approverID)
	if err != nil {
		return domain.ApprovalRequest{}, err
	}

	now := time.Now().UTC()
	approval.Status = domain.ApprovalStatusRejected
	approval.Feedback = &feedback
	approval.ResolvedAt = &now

	e.approvalsMu.Lock()
	e.approvals[approvalID] = approval
	e.approvalsMu.Unlock()

	item, err := e.transitionItem(workItemID, func(item domain.WorkItem) (domain.WorkItem, error) {
		item.Status = domain.WorkItemStatusRejected
		return item, nil
	})
	if err != nil {
		return domain.ApprovalRequest{}, err
	}

	e.queuesMu.Lock()
	e.removeFromQueueNoLock(e.approvalQueues, approverID, approvalID)
	e.workQueues[item.AssigneeId] = append(e.workQueues[item.AssigneeId], item.Id)
	e.queuesMu.Unlock()

	e.hub.publish(Event{Kind: EventWorkRejected, Approval: approval})
	return approval, nil
}

// resolveApproval loads a pending approval request owned by approverID,
// who must hold CapabilityApprove, and returns it alongside its work item
// id.
func (e *Engine) resolveApproval(approvalID, approverID uuid.UUID) (domain.ApprovalRequest, uuid.UUID, error) {
	e.participantsMu.RLock()
	approver, registered := e.participants[approverID]
	e.participantsMu.RUnlock()
	if !registered {
		return domain.ApprovalRequest{}, uuid.UUID{}, apperr.NotFoundf("participant %s not found", approverID)
	}
	if !approver.Capabilities.Has(domain.CapabilityApprove) {
		return domain.ApprovalRequest{}, uuid.UUID{}, apperr.Unauthorizedf("participant %s lacks the approve capability", approverID)
	}

	e.approvalsMu.RLock()
	approval, ok := e.approvals[approvalID]
	e.approvalsMu.RUnlock()

	if !ok {
		return domain.ApprovalRequest{}, uuid.UUID{}, apperr.NotFoundf("approval %s not found", approvalID)
	}
	if approval.ApproverId != approverID {
		return domain.ApprovalRequest{}, uuid.UUID{}, apperr.Unauthorizedf("approval %s is not assigned to %s", approvalID, approverID)
	}
	if approval.Status != domain.ApprovalStatusPending {
		return domain.ApprovalRequest{}, uuid.UUID{}, apperr.BadRequestf("approval %s is not pending", approvalID)
	}
	return approval, approval.WorkItemId, nil
}

// CancelWork cancels a non-terminal work item. Only its delegator, or a
// participant holding CapabilityAdmin, may cancel it.
func (e *Engine) CancelWork(workItemID, requesterID uuid.UUID) (domain.WorkItem, error) {
	e.participantsMu.RLock()
	requester, ok := e.participants[requesterID]
	e.participantsMu.RUnlock()
	if !ok {
		return domain.WorkItem{}, apperr.NotFoundf("participant %s not found", requesterID)
	}

	var assigneeID uuid.UUID
	item, err := e.transitionItem(workItemID, func(item domain.WorkItem) (domain.WorkItem, error) {
		if item.DelegatorId != requesterID && !requester.Capabilities.Has(domain.CapabilityAdmin) {
			return item, apperr.Unauthorizedf("participant %s may not cancel work item %s", requesterID, workItemID)
		}
		if item.Status.Terminal() {
			return item, apperr.BadRequestf("work item %s is already terminal", workItemID)
		}
		assigneeID = item.AssigneeId
		item.Status = domain.WorkItemStatusCancelled
		return item, nil
	})
	if err != nil {
		return domain.WorkItem{}, err
	}

	e.removeFromQueueLocked(&e.workQueues, assigneeID, workItemID)
	e.releaseCapacity(assigneeID)
	e.hub.publish(Event{Kind: EventWorkCancelled, WorkItem: item})
	return item, nil
}

// GetWorkItem returns one work item by id.
func (e *Engine) GetWorkItem(id uuid.UUID) (domain.WorkItem, bool) {
	e.itemsMu.RLock()
	defer e.itemsMu.RUnlock()
	item, ok := e.items[id]
	return item, ok
}

// GetApproval returns one approval request by id.
func (e *Engine) GetApproval(id uuid.UUID) (domain.ApprovalRequest, bool) {
	e.approvalsMu.RLock()
	defer e.approvalsMu.RUnlock()
	approval, ok := e.approvals[id]
	return approval, ok
}

// GetWorkQueue returns participantID's queued work items in FIFO
// insertion order. Priority is never used to reorder this list.
func (e *Engine) GetWorkQueue(participantID uuid.UUID) []domain.WorkItem {
	e.queuesMu.RLock()
	ids := append([]uuid.UUID(nil), e.workQueues[participantID]...)
	e.queuesMu.RUnlock()

	e.itemsMu.RLock()
	defer e.itemsMu.RUnlock()
	out := make([]domain.WorkItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := e.items[id]; ok {
			out = append(out, item)
		}
	}
	return out
}

// GetApprovalQueue returns approverID's queued approval requests in FIFO
// insertion order.
func (e *Engine) GetApprovalQueue(approverID uuid.UUID) []domain.ApprovalRequest {
	e.queuesMu.RLock()
	ids := append([]uuid.UUID(nil), e.approvalQueues[approverID]...)
	e.queuesMu.RUnlock()

	e.approvalsMu.RLock()
	defer e.approvalsMu.RUnlock()
	out := make([]domain.ApprovalRequest, 0, len(ids))
	for _, id := range ids {
		if approval, ok := e.approvals[id]; ok {
			out = append(out, approval)
		}
	}
	return out
}

// transitionItem loads a work item, applies mutate under the items lock,
// and stores the result, leaving queue and participant bookkeeping to the
// caller.
func (e *Engine) transitionItem(id uuid.UUID, mutate func(domain.WorkItem) (domain.WorkItem, error)) (domain.WorkItem, error) {
	e.itemsMu.Lock()
	defer e.itemsMu.Unlock()

	item, ok := e.items[id]
	if !ok {
		return domain.WorkItem{}, apperr.NotFoundf("work item %s not found", id)
	}

	next, err := mutate(item)
	if err != nil {
		return domain.WorkItem{}, err
	}
	next.UpdatedAt = time.Now().UTC()
	e.items[id] = next
	return next, nil
}

func (e *Engine) releaseCapacity(participantID uuid.UUID) {
	e.participantsMu.Lock()
	defer e.participantsMu.Unlock()
	if rp, ok := e.participants[participantID]; ok && rp.InFlight > 0 {
		rp.InFlight--
		e.participants[participantID] = rp
	}
}

// removeFromQueueLocked acquires the queues lock and drops id from key's
// queue.
func (e *Engine) removeFromQueueLocked(queues *map[uuid.UUID][]uuid.UUID, key, id uuid.UUID) {
	e.queuesMu.Lock()
	defer e.queuesMu.Unlock()
	e.removeFromQueueNoLock(*queues, key, id)
}

// removeFromQueueNoLock drops id from key's queue; callers must already
// hold queuesMu.
func (e *Engine) removeFromQueueNoLock(queues map[uuid.UUID][]uuid.UUID, key, id uuid.UUID) {
	q := queues[key]
	for i, v := range q {
		if v == id {
			queues[key] = append(q[:i], q[i+1:]...)
			return
		}
	}
}
