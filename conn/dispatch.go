package conn

import (
	"context"

	"parley/apperr"
	"parley/delegation"
	"parley/domain"
	"parley/wireproto"

	"github.com/google/uuid"
)

// dispatch routes one parsed client frame to the matching domain operation
// and sends the resulting server frame(s).
func (h *Handler) dispatch(ctx context.Context, msg wireproto.ClientMessage) error {
	switch msg.Type {
	case wireproto.ClientCreateJournal:
		return h.handleCreateJournal(ctx, msg)
	case wireproto.ClientGetJournal:
		return h.handleGetJournal(ctx, msg)
	case wireproto.ClientListJournals:
		return h.handleListJournals(ctx)
	case wireproto.ClientSubmit:
		return h.handleSubmit(ctx, msg)
	case wireproto.ClientFork:
		return h.handleFork(ctx, msg)
	case wireproto.ClientRerun:
		return h.handleRerun(ctx, msg)
	case wireproto.ClientCancel:
		return h.handleCancel(ctx, msg)
	case wireproto.ClientSubscribe:
		return h.handleSubscribe(msg)
	case wireproto.ClientUnsubscribe:
		return h.handleUnsubscribe(msg)
	case wireproto.ClientCursor:
		return h.handleCursor(msg)
	case wireproto.ClientGetPresence:
		return h.handleGetPresence(msg)
	case wireproto.ClientCrdtUpdate:
		return h.handleCrdtUpdate(msg)
	case wireproto.ClientSyncRequest:
		return h.handleSyncRequest(msg)
	case wireproto.ClientRegisterParticipant:
		return h.handleRegisterParticipant(msg)
	case wireproto.ClientDelegate:
		return h.handleDelegate(msg)
	case wireproto.ClientAcceptWork:
		return h.handleAcceptWork(msg)
	case wireproto.ClientDeclineWork:
		return h.handleDeclineWork(msg)
	case wireproto.ClientSubmitWork:
		return h.handleSubmitWork(msg)
	case wireproto.ClientApproveWork:
		return h.handleApproveWork(msg)
	case wireproto.ClientRejectWork:
		return h.handleRejectWork(msg)
	case wireproto.ClientCancelWork:
		return h.handleCancelWork(msg)
	case wireproto.ClientClaimWork:
		return h.handleClaimWork(msg)
	case wireproto.ClientGetWorkQueue:
		return h.handleGetWorkQueue(msg)
	case wireproto.ClientGetApprovalQueue:
		return h.handleGetApprovalQueue(msg)
	case wireproto.ClientSetAcceptingWork:
		return h.handleSetAcceptingWork(msg)
	case wireproto.ClientGetParticipants:
		return h.handleGetParticipants()
	default:
		return apperr.BadRequestf("unknown message type %q", msg.Type)
	}
}

func (h *Handler) handleCreateJournal(ctx context.Context, msg wireproto.ClientMessage) error {
	title := msg.Title
	if title == "" {
		title = domain.DefaultJournalTitle
	}
	j, err := h.journals.CreateJournal(ctx, title)
	if err != nil {
		return err
	}
	wj := wireproto.FromJournal(j)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerJournalCreated, Journal: &wj})
	return nil
}

func (h *Handler) handleGetJournal(ctx context.Context, msg wireproto.ClientMessage) error {
	j, err := h.journals.GetJournal(ctx, msg.JournalId)
	if err != nil {
		return err
	}
	blocks, err := h.blocks.GetBlocksForJournal(ctx, j.Id)
	if err != nil {
		return err
	}
	wj := wireproto.FromJournal(j)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerJournal, Journal: &wj, Blocks: wireproto.FromBlocks(blocks)})
	return nil
}

func (h *Handler) handleListJournals(ctx context.Context) error {
	js, err := h.journals.ListJournals(ctx)
	if err != nil {
		return err
	}
	h.send(wireproto.ServerMessage{Type: wireproto.ServerJournals, Journals: wireproto.FromJournals(js)})
	return nil
}

func (h *Handler) handleSubmit(ctx context.Context, msg wireproto.ClientMessage) error {
	_, _, err := h.pipe.Submit(ctx, msg.JournalId, msg.Content, msg.SessionId)
	return err
}

func (h *Handler) handleFork(ctx context.Context, msg wireproto.ClientMessage) error {
	_, _, err := h.pipe.Fork(ctx, msg.Id, msg.SessionId)
	return err
}

func (h *Handler) handleRerun(ctx context.Context, msg wireproto.ClientMessage) error {
	_, _, err := h.pipe.Rerun(ctx, msg.Id, msg.SessionId)
	return err
}

func (h *Handler) handleCancel(ctx context.Context, msg wireproto.ClientMessage) error {
	return h.pipe.Cancel(ctx, msg.Id)
}

// handleSubscribe joins the room for msg.JournalId, records the
// subscription, replies Subscribed, and spawns a relay goroutine that
// forwards subsequent room events to this connection, except the ones this
// connection's own participant originated.
func (h *Handler) handleSubscribe(msg wireproto.ClientMessage) error {
	kind := domain.ParticipantKind(msg.Kind)
	if !kind.Valid() {
		kind = domain.ParticipantKindUser
	}

	r := h.rooms.GetOrCreate(msg.JournalId)
	self := r.Join(msg.Name, kind)

	events, stop := r.Subscribe()

	h.mu.Lock()
	h.subscriptions[msg.JournalId] = subscription{participantID: self.Id, stop: stop}
	h.mu.Unlock()

	wself := wireproto.FromParticipant(self)
	h.send(wireproto.ServerMessage{
		Type:         wireproto.ServerSubscribed,
		JournalId:    msg.JournalId,
		Self:         &wself,
		Participants: wireproto.FromParticipants(r.Participants()),
	})

	go h.relay(msg.JournalId, self.Id, events)
	return nil
}

func (h *Handler) handleUnsubscribe(msg wireproto.ClientMessage) error {
	h.mu.Lock()
	sub, ok := h.subscriptions[msg.JournalId]
	if ok {
		delete(h.subscriptions, msg.JournalId)
	}
	h.mu.Unlock()

	if !ok {
		return apperr.BadRequestf("not subscribed to journal %s", msg.JournalId)
	}
	sub.stop()
	if r, ok := h.rooms.Get(msg.JournalId); ok {
		r.Leave(sub.participantID)
	}
	h.send(wireproto.ServerMessage{Type: wireproto.ServerUnsubscribed, JournalId: msg.JournalId})
	return nil
}

func (h *Handler) handleCursor(msg wireproto.ClientMessage) error {
	sub, ok := h.subscriptionFor(msg.JournalId)
	if !ok {
		return apperr.BadRequestf("not subscribed to journal %s", msg.JournalId)
	}
	r, ok := h.rooms.Get(msg.JournalId)
	if !ok {
		return apperr.NotFoundf("journal %s has no active room", msg.JournalId)
	}
	r.UpdateCursor(sub.participantID, msg.BlockId, msg.Offset)
	return nil
}

func (h *Handler) handleGetPresence(msg wireproto.ClientMessage) error {
	r, ok := h.rooms.Get(msg.JournalId)
	if !ok {
		h.send(wireproto.ServerMessage{Type: wireproto.ServerPresence, JournalId: msg.JournalId})
		return nil
	}
	h.send(wireproto.ServerMessage{Type: wireproto.ServerPresence, JournalId: msg.JournalId, Participants: wireproto.FromParticipants(r.Participants())})
	return nil
}

func (h *Handler) handleCrdtUpdate(msg wireproto.ClientMessage) error {
	sub, ok := h.subscriptionFor(msg.JournalId)
	if !ok {
		return apperr.BadRequestf("not subscribed to journal %s", msg.JournalId)
	}
	r, ok := h.rooms.Get(msg.JournalId)
	if !ok {
		return apperr.NotFoundf("journal %s has no active room", msg.JournalId)
	}
	update, err := wireproto.DecodeBinary(msg.Update)
	if err != nil {
		return apperr.BadRequestf("invalid crdt update encoding: %v", err)
	}
	source := sub.participantID
	return r.ApplyUpdate(&source, update)
}

func (h *Handler) handleSyncRequest(msg wireproto.ClientMessage) error {
	r, ok := h.rooms.Get(msg.JournalId)
	if !ok {
		return apperr.NotFoundf("journal %s has no active room", msg.JournalId)
	}
	state, err := r.GetSyncState()
	if err != nil {
		return err
	}
	h.send(wireproto.ServerMessage{Type: wireproto.ServerSyncState, JournalId: msg.JournalId, State: wireproto.EncodeBinary(state)})
	return nil
}

func (h *Handler) handleRegisterParticipant(msg wireproto.ClientMessage) error {
	kind := domain.ParticipantKind(msg.Kind)
	if !kind.Valid() {
		kind = domain.ParticipantKindUser
	}

	var rp domain.RegisteredParticipant
	if len(msg.Capabilities) > 0 || msg.Capacity != nil {
		caps := domain.DefaultCapabilities(kind)
		if len(msg.Capabilities) > 0 {
			explicit := make([]domain.Capability, len(msg.Capabilities))
			for i, c := range msg.Capabilities {
				explicit[i] = domain.Capability(c)
			}
			caps = domain.NewCapabilitySet(explicit...)
		}
		capacity := domain.DefaultCapacity(kind)
		if msg.Capacity != nil {
			capacity = *msg.Capacity
		}
		rp = h.engine.RegisterParticipantWithCapabilities(msg.Name, kind, caps, capacity)
	} else {
		rp = h.engine.RegisterParticipant(msg.Name, kind)
	}

	events, stop := h.engine.Subscribe()

	h.mu.Lock()
	h.registrations[rp.Participant.Id] = stop
	h.mu.Unlock()

	wrp := wireproto.FromRegistered(rp)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerParticipantRegistered, Registered: &wrp})

	go h.delegationRelay(rp.Participant.Id, events)
	return nil
}

func (h *Handler) handleDelegate(msg wireproto.ClientMessage) error {
	if err := h.requireOwnedParticipant(msg.ParticipantId); err != nil {
		return err
	}
	priority := domain.WorkItemPriority(msg.Priority)
	if priority == "" {
		priority = domain.PriorityNormal
	}
	item, err := h.engine.Delegate(delegation.DelegateInput{
		JournalId:        msg.JournalId,
		DelegatorId:      msg.ParticipantId,
		AssigneeId:       msg.AssigneeId,
		Description:      msg.Description,
		BlockId:          msg.BlockId,
		Priority:         priority,
		RequiresApproval: msg.RequiresApproval,
		ApproverId:       msg.ApproverId,
	})
	if err != nil {
		return err
	}
	wi := wireproto.FromWorkItem(item)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerWorkDelegated, WorkItem: &wi})
	return nil
}

func (h *Handler) handleAcceptWork(msg wireproto.ClientMessage) error {
	if err := h.requireOwnedParticipant(msg.ParticipantId); err != nil {
		return err
	}
	item, err := h.engine.AcceptWork(msg.WorkItemId, msg.ParticipantId)
	if err != nil {
		return err
	}
	wi := wireproto.FromWorkItem(item)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerWorkAccepted, WorkItem: &wi})
	return nil
}

func (h *Handler) handleDeclineWork(msg wireproto.ClientMessage) error {
	if err := h.requireOwnedParticipant(msg.ParticipantId); err != nil {
		return err
	}
	item, err := h.engine.DeclineWork(msg.WorkItemId, msg.ParticipantId)
	if err != nil {
		return err
	}
	wi := wireproto.FromWorkItem(item)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerWorkDeclined, WorkItem: &wi})
	return nil
}

func (h *Handler) handleSubmitWork(msg wireproto.ClientMessage) error {
	if err := h.requireOwnedParticipant(msg.ParticipantId); err != nil {
		return err
	}
	item, err := h.engine.SubmitWork(msg.WorkItemId, msg.ParticipantId, msg.Result)
	if err != nil {
		return err
	}
	wi := wireproto.FromWorkItem(item)
	if item.Status == domain.WorkItemStatusAwaitingApproval {
		h.send(wireproto.ServerMessage{Type: wireproto.ServerApprovalRequested, WorkItem: &wi})
		return nil
	}
	h.send(wireproto.ServerMessage{Type: wireproto.ServerWorkApproved, WorkItem: &wi})
	return nil
}

func (h *Handler) handleApproveWork(msg wireproto.ClientMessage) error {
	if err := h.requireOwnedParticipant(msg.ParticipantId); err != nil {
		return err
	}
	approval, err := h.engine.Approve(msg.ApprovalId, msg.ParticipantId, msg.Feedback)
	if err != nil {
		return err
	}
	wa := wireproto.FromApproval(approval)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerWorkApproved, Approval: &wa})
	return nil
}

func (h *Handler) handleRejectWork(msg wireproto.ClientMessage) error {
	if err := h.requireOwnedParticipant(msg.ParticipantId); err != nil {
		return err
	}
	feedback := ""
	if msg.Feedback != nil {
		feedback = *msg.Feedback
	}
	approval, err := h.engine.Reject(msg.ApprovalId, msg.ParticipantId, feedback)
	if err != nil {
		return err
	}
	wa := wireproto.FromApproval(approval)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerWorkRejected, Approval: &wa})
	return nil
}

func (h *Handler) handleCancelWork(msg wireproto.ClientMessage) error {
	if err := h.requireOwnedParticipant(msg.ParticipantId); err != nil {
		return err
	}
	item, err := h.engine.CancelWork(msg.WorkItemId, msg.ParticipantId)
	if err != nil {
		return err
	}
	wi := wireproto.FromWorkItem(item)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerWorkCancelled, WorkItem: &wi})
	return nil
}

func (h *Handler) handleClaimWork(msg wireproto.ClientMessage) error {
	if err := h.requireOwnedParticipant(msg.ParticipantId); err != nil {
		return err
	}
	item, err := h.engine.ClaimWork(msg.WorkItemId, msg.ParticipantId)
	if err != nil {
		return err
	}
	wi := wireproto.FromWorkItem(item)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerWorkClaimed, WorkItem: &wi})
	return nil
}

func (h *Handler) handleGetWorkQueue(msg wireproto.ClientMessage) error {
	if err := h.requireOwnedParticipant(msg.ParticipantId); err != nil {
		return err
	}
	items := h.engine.GetWorkQueue(msg.ParticipantId)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerWorkQueue, WorkQueue: wireproto.FromWorkItems(items)})
	return nil
}

func (h *Handler) handleGetApprovalQueue(msg wireproto.ClientMessage) error {
	if err := h.requireOwnedParticipant(msg.ParticipantId); err != nil {
		return err
	}
	approvals := h.engine.GetApprovalQueue(msg.ParticipantId)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerApprovalQueue, ApprovalQueue: wireproto.FromApprovals(approvals)})
	return nil
}

func (h *Handler) handleSetAcceptingWork(msg wireproto.ClientMessage) error {
	if err := h.requireOwnedParticipant(msg.ParticipantId); err != nil {
		return err
	}
	rp, err := h.engine.SetAcceptingWork(msg.ParticipantId, msg.Accepting)
	if err != nil {
		return err
	}
	wrp := wireproto.FromRegistered(rp)
	h.send(wireproto.ServerMessage{Type: wireproto.ServerAcceptingWorkChanged, Registered: &wrp})
	return nil
}

func (h *Handler) handleGetParticipants() error {
	rps := h.engine.ListParticipants()
	h.send(wireproto.ServerMessage{Type: wireproto.ServerAvailableParticipants, AvailableParticipants: wireproto.FromRegisteredList(rps)})
	return nil
}

func (h *Handler) subscriptionFor(journalID uuid.UUID) (subscription, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subscriptions[journalID]
	return sub, ok
}
