package wireproto

import "parley/domain"

func FromJournal(j domain.Journal) WireJournal {
	return WireJournal{Id: j.Id, Title: j.Title, CreatedAt: j.CreatedAt, UpdatedAt: j.UpdatedAt}
}

func FromJournals(js []domain.Journal) []WireJournal {
	out := make([]WireJournal, len(js))
	for i, j := range js {
		out[i] = FromJournal(j)
	}
	return out
}

func FromBlock(b domain.Block) WireBlock {
	return WireBlock{
		Id:           b.Id,
		JournalId:    b.JournalId,
		BlockType:    b.BlockType.String(),
		Content:      b.Content,
		Status:       b.Status.String(),
		ParentId:     b.ParentId,
		ForkedFromId: b.ForkedFromId,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func FromBlocks(bs []domain.Block) []WireBlock {
	out := make([]WireBlock, len(bs))
	for i, b := range bs {
		out[i] = FromBlock(b)
	}
	return out
}

func FromParticipant(p domain.Participant) WireParticipant {
	wp := WireParticipant{
		Id:         p.Id,
		Name:       p.Name,
		Kind:       string(p.Kind),
		Status:     string(p.Status),
		Color:      p.Color,
		JoinedAt:   p.JoinedAt,
		LastSeenAt: p.LastSeenAt,
	}
	if p.Cursor != nil {
		wp.BlockId = p.Cursor.BlockId
		wp.Offset = p.Cursor.Offset
	}
	return wp
}

func FromParticipants(ps []domain.Participant) []WireParticipant {
	out := make([]WireParticipant, len(ps))
	for i, p := range ps {
		out[i] = FromParticipant(p)
	}
	return out
}

func FromRegistered(rp domain.RegisteredParticipant) WireRegisteredParticipant {
	return WireRegisteredParticipant{
		Participant:   FromParticipant(rp.Participant),
		Capabilities:  capabilityStrings(rp.Capabilities),
		AcceptingWork: rp.AcceptingWork,
		Capacity:      rp.Capacity,
		InFlight:      rp.InFlight,
	}
}

func FromRegisteredList(rps []domain.RegisteredParticipant) []WireRegisteredParticipant {
	out := make([]WireRegisteredParticipant, len(rps))
	for i, rp := range rps {
		out[i] = FromRegistered(rp)
	}
	return out
}

func capabilityStrings(caps domain.CapabilitySet) []string {
	slice := caps.Slice()
	out := make([]string, len(slice))
	for i, c := range slice {
		out[i] = string(c)
	}
	return out
}

func FromWorkItem(w domain.WorkItem) WireWorkItem {
	return WireWorkItem{
		Id:               w.Id,
		JournalId:        w.JournalId,
		Description:      w.Description,
		BlockId:          w.BlockId,
		DelegatorId:      w.DelegatorId,
		AssigneeId:       w.AssigneeId,
		Status:           string(w.Status),
		Priority:         string(w.Priority),
		RequiresApproval: w.RequiresApproval,
		ApproverId:       w.ApproverId,
		Result:           w.Result,
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}

func FromWorkItems(ws []domain.WorkItem) []WireWorkItem {
	out := make([]WireWorkItem, len(ws))
	for i, w := range ws {
		out[i] = FromWorkItem(w)
	}
	return out
}

func FromApproval(a domain.ApprovalRequest) WireApprovalRequest {
	return WireApprovalRequest{
		Id:          a.Id,
		WorkItemId:  a.WorkItemId,
		RequesterId: a.RequesterId,
		ApproverId:  a.ApproverId,
		Status:      string(a.Status),
		Feedback:    a.Feedback,
		CreatedAt:   a.CreatedAt,
		ResolvedAt:  a.ResolvedAt,
	}
}

func FromApprovals(as []domain.ApprovalRequest) []WireApprovalRequest {
	out := make([]WireApprovalRequest, len(as))
	for i, a := range as {
		out[i] = FromApproval(a)
	}
	return out
}
