package wireproto

import (
	"time"

	"github.com/google/uuid"
)

// ServerType discriminates an outgoing server frame.
type ServerType string

const (
	ServerJournalCreated          ServerType = "journal_created"
	ServerJournal                 ServerType = "journal"
	ServerJournals                ServerType = "journals"
	ServerBlockCreated            ServerType = "block_created"
	ServerBlockContentDelta       ServerType = "block_content_delta"
	ServerBlockStatusChanged      ServerType = "block_status_changed"
	ServerBlockForked             ServerType = "block_forked"
	ServerBlockCancelled          ServerType = "block_cancelled"
	ServerError                   ServerType = "error"
	ServerSubscribed              ServerType = "subscribed"
	ServerUnsubscribed            ServerType = "unsubscribed"
	ServerParticipantJoined       ServerType = "participant_joined"
	ServerParticipantLeft         ServerType = "participant_left"
	ServerCursorMoved             ServerType = "cursor_moved"
	ServerParticipantStatusChange ServerType = "participant_status_changed"
	ServerPresence                ServerType = "presence"
	ServerCrdtUpdate              ServerType = "crdt_update"
	ServerSyncState               ServerType = "sync_state"
	ServerParticipantRegistered   ServerType = "participant_registered"
	ServerWorkDelegated           ServerType = "work_delegated"
	ServerWorkAccepted            ServerType = "work_accepted"
	ServerWorkDeclined            ServerType = "work_declined"
	ServerApprovalRequested       ServerType = "approval_requested"
	ServerWorkApproved            ServerType = "work_approved"
	ServerWorkRejected            ServerType = "work_rejected"
	ServerWorkCancelled           ServerType = "work_cancelled"
	ServerWorkClaimed             ServerType = "work_claimed"
	ServerWorkQueue               ServerType = "work_queue"
	ServerApprovalQueue           ServerType = "approval_queue"
	ServerAvailableParticipants   ServerType = "available_participants"
	ServerAcceptingWorkChanged    ServerType = "accepting_work_changed"
)

// WireJournal is a journal as rendered on the wire.
type WireJournal struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// WireBlock is a block as rendered on the wire.
type WireBlock struct {
	Id           uuid.UUID  `json:"id"`
	JournalId    uuid.UUID  `json:"journalId"`
	BlockType    string     `json:"blockType"`
	Content      string     `json:"content"`
	Status       string     `json:"status"`
	ParentId     *uuid.UUID `json:"parentId,omitempty"`
	ForkedFromId *uuid.UUID `json:"forkedFromId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// WireParticipant is a presence participant as rendered on the wire.
type WireParticipant struct {
	Id         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	BlockId    *uuid.UUID `json:"blockId,omitempty"`
	Offset     *int       `json:"offset,omitempty"`
	Color      string     `json:"color"`
	JoinedAt   time.Time  `json:"joinedAt"`
	LastSeenAt time.Time  `json:"lastSeenAt"`
}

// WireRegisteredParticipant is a delegation-engine participant as
// rendered on the wire.
type WireRegisteredParticipant struct {
	Participant   WireParticipant `json:"participant"`
	Capabilities  []string        `json:"capabilities"`
	AcceptingWork bool            `json:"acceptingWork"`
	Capacity      int             `json:"capacity"`
	InFlight      int             `json:"inFlight"`
}

// WireWorkItem is a work item as rendered on the wire.
type WireWorkItem struct {
	Id               uuid.UUID  `json:"id"`
	JournalId        uuid.UUID  `json:"journalId"`
	Description      string     `json:"description"`
	BlockId          *uuid.UUID `json:"blockId,omitempty"`
	DelegatorId      uuid.UUID  `json:"delegatorId"`
	AssigneeId       uuid.UUID  `json:"assigneeId"`
	Status           string     `json:"status"`
	Priority         string     `json:"priority"`
	RequiresApproval bool       `json:"requiresApproval"`
	ApproverId       uuid.UUID  `json:"approverId"`
	Result           *string    `json:"result,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// WireApprovalRequest is an approval request as rendered on the wire.
type WireApprovalRequest struct {
	Id          uuid.UUID  `json:"id"`
	WorkItemId  uuid.UUID  `json:"workItemId"`
	RequesterId uuid.UUID  `json:"requesterId"`
	ApproverId  uuid.UUID  `json:"approverId"`
	Status      string     `json:"status"`
	Feedback    *string    `json:"feedback,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

// ServerMessage is the envelope for every outbound frame. Only the
// fields relevant to Type are populated; the rest are left zero and
// omitted by json:",omitempty" where tagged so.
type ServerMessage struct {
	Type ServerType `json:"type"`

	Journal  *WireJournal  `json:"journal,omitempty"`
	Journals []WireJournal `json:"journals,omitempty"`
	Blocks   []WireBlock   `json:"blocks,omitempty"`

	Block *WireBlock `json:"block,omitempty"`

	BlockId uuid.UUID `json:"blockId,omitempty"`
	Delta   string    `json:"delta,omitempty"`
	Status  string    `json:"status,omitempty"`

	OriginalBlockId uuid.UUID  `json:"originalBlockId,omitempty"`
	NewBlock        *WireBlock `json:"newBlock,omitempty"`

	Message string `json:"message,omitempty"`

	JournalId    uuid.UUID         `json:"journalId,omitempty"`
	Self         *WireParticipant  `json:"self,omitempty"`
	Participants []WireParticipant `json:"participants,omitempty"`
	Participant  *WireParticipant  `json:"participant,omitempty"`

	ParticipantId uuid.UUID `json:"participantId,omitempty"`
	Offset        *int      `json:"offset,omitempty"`

	Update string     `json:"update,omitempty"` // base64
	Source *uuid.UUID `json:"source,omitempty"`
	State  string     `json:"state,omitempty"` // base64

	Registered *WireRegisteredParticipant `json:"registered,omitempty"`

	WorkItem *WireWorkItem        `json:"workItem,omitempty"`
	Approval *WireApprovalRequest `json:"approval,omitempty"`

	WorkQueue     []WireWorkItem        `json:"workQueue,omitempty"`
	ApprovalQueue []WireApprovalRequest `json:"approvalQueue,omitempty"`

	AvailableParticipants []WireRegisteredParticipant `json:"availableParticipants,omitempty"`
	AcceptingWork         bool                        `json:"acceptingWork,omitempty"`
}
