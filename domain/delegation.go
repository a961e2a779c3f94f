package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorkItemStatus is a work item's position along the delegation state
// machine described in the delegation engine.
type WorkItemStatus string

const (
	WorkItemStatusPending          WorkItemStatus = "pending"
	WorkItemStatusInProgress       WorkItemStatus = "in_progress"
	WorkItemStatusAwaitingApproval WorkItemStatus = "awaiting_approval"
	WorkItemStatusApproved         WorkItemStatus = "approved"
	WorkItemStatusRejected         WorkItemStatus = "rejected"
	WorkItemStatusDeclined         WorkItemStatus = "declined"
	WorkItemStatusCancelled        WorkItemStatus = "cancelled"
)

// Terminal reports whether a work item in this status can never transition
// further.
func (s WorkItemStatus) Terminal() bool {
	switch s {
	case WorkItemStatusApproved, WorkItemStatusDeclined, WorkItemStatusCancelled:
		return true
	}
	return false
}

// Active reports whether work may still be performed on an item in this
// status (it is eligible for submit_work).
func (s WorkItemStatus) Active() bool {
	return s == WorkItemStatusInProgress || s == WorkItemStatusRejected
}

// InQueue reports whether a work item in this status belongs in its
// assignee's work queue.
func (s WorkItemStatus) InQueue() bool {
	return s == WorkItemStatusPending || s == WorkItemStatusRejected
}

// WorkItemPriority is an advisory ordering hint; the engine itself never
// reorders queues by priority.
type WorkItemPriority string

const (
	PriorityLow    WorkItemPriority = "low"
	PriorityNormal WorkItemPriority = "normal"
	PriorityHigh   WorkItemPriority = "high"
	PriorityUrgent WorkItemPriority = "urgent"
)

// WorkItem is a unit of delegated work traversing the delegation state
// machine.
type WorkItem struct {
	Id               uuid.UUID        `json:"id"`
	JournalId        uuid.UUID        `json:"journalId"`
	Description      string           `json:"description"`
	BlockId          *uuid.UUID       `json:"blockId,omitempty"`
	DelegatorId      uuid.UUID        `json:"delegatorId"`
	AssigneeId       uuid.UUID        `json:"assigneeId"`
	Status           WorkItemStatus   `json:"status"`
	Priority         WorkItemPriority `json:"priority"`
	RequiresApproval bool             `json:"requiresApproval"`
	ApproverId       uuid.UUID        `json:"approverId"`
	Result           *string          `json:"result,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// ApprovalStatus is an approval request's position along its own small
// state machine, attached to a work item awaiting third-party sign-off.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// ApprovalRequest is the secondary state machine attached to a work item
// that requires third-party sign-off before it is considered done.
type ApprovalRequest struct {
	Id          uuid.UUID      `json:"id"`
	WorkItemId  uuid.UUID      `json:"workItemId"`
	RequesterId uuid.UUID      `json:"requesterId"`
	ApproverId  uuid.UUID      `json:"approverId"`
	Status      ApprovalStatus `json:"status"`
	Feedback    *string        `json:"feedback,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	ResolvedAt  *time.Time     `json:"resolvedAt,omitempty"`
}
