// Package wireproto defines the JSON message shapes exchanged over a
// connection's bidirectional channel: a flat envelope per direction,
// discriminated by a snake_case "type" field, with per-message fields
// left empty when not applicable to that type.
package wireproto

import "github.com/google/uuid"

// ClientType discriminates an incoming client message.
type ClientType string

const (
	ClientSubmit              ClientType = "submit"
	ClientCreateJournal       ClientType = "create_journal"
	ClientGetJournal          ClientType = "get_journal"
	ClientListJournals        ClientType = "list_journals"
	ClientFork                ClientType = "fork"
	ClientRerun               ClientType = "rerun"
	ClientCancel              ClientType = "cancel"
	ClientSubscribe           ClientType = "subscribe"
	ClientUnsubscribe         ClientType = "unsubscribe"
	ClientCursor              ClientType = "cursor"
	ClientGetPresence         ClientType = "get_presence"
	ClientCrdtUpdate          ClientType = "crdt_update"
	ClientSyncRequest         ClientType = "sync_request"
	ClientRegisterParticipant ClientType = "register_participant"
	ClientDelegate            ClientType = "delegate"
	ClientAcceptWork          ClientType = "accept_work"
	ClientDeclineWork         ClientType = "decline_work"
	ClientSubmitWork          ClientType = "submit_work"
	ClientApproveWork         ClientType = "approve_work"
	ClientRejectWork          ClientType = "reject_work"
	ClientCancelWork          ClientType = "cancel_work"
	ClientClaimWork           ClientType = "claim_work"
	ClientGetWorkQueue        ClientType = "get_work_queue"
	ClientGetApprovalQueue    ClientType = "get_approval_queue"
	ClientSetAcceptingWork    ClientType = "set_accepting_work"
	ClientGetParticipants     ClientType = "get_participants"
)

// ClientMessage is the envelope for every inbound frame. Unmarshal into
// this struct first to read Type, then interpret only the fields that
// type defines. ParticipantId carries the delegation-registered
// participant id performing an action across every delegation message
// that needs one (delegator, assignee, approver, claimer, ...).
type ClientMessage struct {
	Type ClientType `json:"type"`

	// submit, get_journal, subscribe, unsubscribe, cursor, get_presence,
	// crdt_update, sync_request
	JournalId uuid.UUID `json:"journalId,omitempty"`

	// submit
	Content   string `json:"content,omitempty"`
	SessionId string `json:"sessionId,omitempty"`

	// create_journal
	Title string `json:"title,omitempty"`

	// fork, rerun, cancel: the block id being acted on
	Id uuid.UUID `json:"id,omitempty"`

	// cursor
	BlockId *uuid.UUID `json:"blockId,omitempty"`
	Offset  *int       `json:"offset,omitempty"`

	// subscribe: the display name and kind this connection joins the room
	// as. register_participant: same, for the delegation registry.
	Name string `json:"name,omitempty"`
	Kind string `json:"kind,omitempty"`

	// crdt_update
	Update string `json:"update,omitempty"` // base64

	// register_participant
	Capabilities []string `json:"capabilities,omitempty"`
	Capacity     *int     `json:"capacity,omitempty"`

	// delegate
	Description      string    `json:"description,omitempty"`
	AssigneeId       uuid.UUID `json:"assigneeId,omitempty"`
	Priority         string    `json:"priority,omitempty"`
	RequiresApproval bool      `json:"requiresApproval,omitempty"`
	ApproverId       uuid.UUID `json:"approverId,omitempty"`

	// accept_work, decline_work, submit_work, cancel_work, claim_work
	WorkItemId uuid.UUID `json:"workItemId,omitempty"`
	Result     string    `json:"result,omitempty"`

	// approve_work, reject_work
	ApprovalId uuid.UUID `json:"approvalId,omitempty"`
	Feedback   *string   `json:"feedback,omitempty"`

	// delegate (delegator), accept_work, decline_work, submit_work,
	// approve_work, reject_work, cancel_work, claim_work, get_work_queue,
	// get_approval_queue, set_accepting_work
	ParticipantId uuid.UUID `json:"participantId,omitempty"`
	Accepting     bool      `json:"accepting,omitempty"`
}
