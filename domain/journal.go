package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Journal is a conversation document containing ordered blocks.
type Journal struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const DefaultJournalTitle = "Untitled"

// JournalStorage defines durable persistence for journals.
type JournalStorage interface {
	CreateJournal(ctx context.Context, title string) (Journal, error)
	GetJournal(ctx context.Context, id uuid.UUID) (Journal, error)
	ListJournals(ctx context.Context) ([]Journal, error)
}

// BlockType is the role of a block's author.
type BlockType string

const (
	BlockTypeUser      BlockType = "user"
	BlockTypeAssistant BlockType = "assistant"
)

func (t BlockType) Valid() bool {
	switch t {
	case BlockTypeUser, BlockTypeAssistant:
		return true
	}
	return false
}

// BlockStatus is a block's position along its state machine.
type BlockStatus string

const (
	BlockStatusPending   BlockStatus = "pending"
	BlockStatusStreaming BlockStatus = "streaming"
	BlockStatusComplete  BlockStatus = "complete"
	BlockStatusError     BlockStatus = "error"
)

func (s BlockStatus) Valid() bool {
	switch s {
	case BlockStatusPending, BlockStatusStreaming, BlockStatusComplete, BlockStatusError:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status; once reached, a block's
// status may never change again.
func (s BlockStatus) Terminal() bool {
	return s == BlockStatusComplete || s == BlockStatusError
}

// Block is one user or assistant turn in a journal, the atomic unit of
// content and status.
type Block struct {
	Id            uuid.UUID  `json:"id"`
	JournalId     uuid.UUID  `json:"journalId"`
	BlockType     BlockType  `json:"blockType"`
	Content       string     `json:"content"`
	Status        BlockStatus `json:"status"`
	ParentId      *uuid.UUID `json:"parentId,omitempty"`
	ForkedFromId  *uuid.UUID `json:"forkedFromId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// InitialStatus returns the status a freshly created block of this type is
// born with: user blocks complete immediately, assistant blocks start
// pending their streamed response.
func (t BlockType) InitialStatus() BlockStatus {
	if t == BlockTypeUser {
		return BlockStatusComplete
	}
	return BlockStatusPending
}

// BlockStorage defines durable persistence and lineage queries for blocks.
type BlockStorage interface {
	CreateBlock(ctx context.Context, journalId uuid.UUID, blockType BlockType, content string, parentId, forkedFromId *uuid.UUID) (Block, error)
	GetBlock(ctx context.Context, id uuid.UUID) (Block, error)
	GetBlocksForJournal(ctx context.Context, journalId uuid.UUID) ([]Block, error)
	UpdateBlockContent(ctx context.Context, id uuid.UUID, content string) error
	UpdateBlockStatus(ctx context.Context, id uuid.UUID, status BlockStatus) error
	ForkBlock(ctx context.Context, id uuid.UUID) (Block, error)
	RerunBlock(ctx context.Context, id uuid.UUID) (Block, error)
	GetForks(ctx context.Context, id uuid.UUID) ([]Block, error)
	GetChildren(ctx context.Context, id uuid.UUID) ([]Block, error)
}

func (t BlockType) String() string {
	return string(t)
}

func (s BlockStatus) String() string {
	return string(s)
}

// ParseBlockType validates a stored or wire-provided block type string.
func ParseBlockType(s string) (BlockType, error) {
	t := BlockType(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid block type %q", s)
	}
	return t, nil
}

// ParseBlockStatus validates a stored or wire-provided block status string.
func ParseBlockStatus(s string) (BlockStatus, error) {
	st := BlockStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid block status %q", s)
	}
	return st, nil
}
