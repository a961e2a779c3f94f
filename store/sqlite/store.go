package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"parley/apperr"
	"parley/domain"

	"github.com/google/uuid"
)

// Store is the block lineage store: durable persistence of journals and
// blocks, plus the lineage queries the streaming pipeline relies on.
type Store struct {
	client *Client
}

var _ domain.JournalStorage = (*Store)(nil)
var _ domain.BlockStorage = (*Store)(nil)

func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) CreateJournal(ctx context.Context, title string) (domain.Journal, error) {
	if title == "" {
		title = domain.DefaultJournalTitle
	}
	now := time.Now().UTC()
	j := domain.Journal{
		Id:        uuid.New(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.client.ExecContext(ctx, `
		INSERT INTO journals (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, j.Id.String(), j.Title, j.CreatedAt.Format(time.RFC3339Nano), j.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return domain.Journal{}, apperr.Databasef(err, "failed to persist journal")
	}

	return j, nil
}

func (s *Store) GetJournal(ctx context.Context, id uuid.UUID) (domain.Journal, error) {
	row := s.client.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at FROM journals WHERE id = ?
	`, id.String())

	return scanJournal(row)
}

func (s *Store) ListJournals(ctx context.Context) ([]domain.Journal, error) {
	rows, err := s.client.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at FROM journals ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, apperr.Databasef(err, "failed to list journals")
	}
	defer rows.Close()

	journals := make([]domain.Journal, 0)
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, err
		}
		journals = append(journals, j)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Databasef(err, "failed to list journals")
	}

	return journals, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJournal(row rowScanner) (domain.Journal, error) {
	var j domain.Journal
	var id, createdAt, updatedAt string

	err := row.Scan(&id, &j.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Journal{}, apperr.NotFoundf("journal not found")
	}
	if err != nil {
		return domain.Journal{}, apperr.Databasef(err, "failed to scan journal")
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.Journal{}, apperr.Internalf("journal row has unparseable id %q", id)
	}
	j.Id = parsed

	j.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return domain.Journal{}, apperr.Internalf("journal row has unparseable created_at %q", createdAt)
	}
	j.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return domain.Journal{}, apperr.Internalf("journal row has unparseable updated_at %q", updatedAt)
	}

	return j, nil
}

func (s *Store) CreateBlock(ctx context.Context, journalId uuid.UUID, blockType domain.BlockType, content string, parentId, forkedFromId *uuid.UUID) (domain.Block, error) {
	if !blockType.Valid() {
		return domain.Block{}, apperr.BadRequestf("invalid block type %q", blockType)
	}

	now := time.Now().UTC()
	b := domain.Block{
		Id:           uuid.New(),
		JournalId:    journalId,
		BlockType:    blockType,
		Content:      content,
		Status:       blockType.InitialStatus(),
		ParentId:     parentId,
		ForkedFromId: forkedFromId,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := s.client.BeginTx(ctx, nil)
	if err != nil {
		return domain.Block{}, apperr.Databasef(err, "failed to begin transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO blocks (id, journal_id, block_type, content, status, parent_id, forked_from_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.Id.String(), b.JournalId.String(), b.BlockType.String(), b.Content, b.Status.String(),
		uuidPtrString(b.ParentId), uuidPtrString(b.ForkedFromId), b.CreatedAt.Format(time.RFC3339Nano), b.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return domain.Block{}, apperr.Databasef(err, "failed to persist block")
	}

	_, err = tx.ExecContext(ctx, `UPDATE journals SET updated_at = ? WHERE id = ?`, now.Format(time.RFC3339Nano), journalId.String())
	if err != nil {
		return domain.Block{}, apperr.Databasef(err, "failed to touch journal")
	}

	if err := tx.Commit(); err != nil {
		return domain.Block{}, apperr.Databasef(err, "failed to commit block creation")
	}

	return b, nil
}

func (s *Store) GetBlock(ctx context.Context, id uuid.UUID) (domain.Block, error) {
	row := s.client.QueryRowContext(ctx, `
		SELECT id, journal_id, block_type, content, status, parent_id, forked_from_id, created_at, updated_at
		FROM blocks WHERE id = ?
	`, id.String())

	return scanBlock(row)
}

func (s *Store) GetBlocksForJournal(ctx context.Context, journalId uuid.UUID) ([]domain.Block, error) {
	rows, err := s.client.QueryContext(ctx, `
		SELECT id, journal_id, block_type, content, status, parent_id, forked_from_id, created_at, updated_at
		FROM blocks WHERE journal_id = ? ORDER BY created_at ASC
	`, journalId.String())
	if err != nil {
		return nil, apperr.Databasef(err, "failed to list blocks")
	}
	defer rows.Close()

	return scanBlockRows(rows)
}

func (s *Store) GetForks(ctx context.Context, id uuid.UUID) ([]domain.Block, error) {
	rows, err := s.client.QueryContext(ctx, `
		SELECT id, journal_id, block_type, content, status, parent_id, forked_from_id, created_at, updated_at
		FROM blocks WHERE forked_from_id = ? ORDER BY created_at ASC
	`, id.String())
	if err != nil {
		return nil, apperr.Databasef(err, "failed to list forks")
	}
	defer rows.Close()

	return scanBlockRows(rows)
}

func (s *Store) GetChildren(ctx context.Context, id uuid.UUID) ([]domain.Block, error) {
	rows, err := s.client.QueryContext(ctx, `
		SELECT id, journal_id, block_type, content, status, parent_id, forked_from_id, created_at, updated_at
		FROM blocks WHERE parent_id = ? ORDER BY created_at ASC
	`, id.String())
	if err != nil {
		return nil, apperr.Databasef(err, "failed to list children")
	}
	defer rows.Close()

	return scanBlockRows(rows)
}

func (s *Store) UpdateBlockContent(ctx context.Context, id uuid.UUID, content string) error {
	now := time.Now().UTC()
	res, err := s.client.ExecContext(ctx, `UPDATE blocks SET content = ?, updated_at = ? WHERE id = ?`, content, now.Format(time.RFC3339Nano), id.String())
	if err != nil {
		return apperr.Databasef(err, "failed to update block content")
	}
	return requireRowAffected(res)
}

func (s *Store) UpdateBlockStatus(ctx context.Context, id uuid.UUID, status domain.BlockStatus) error {
	if !status.Valid() {
		return apperr.BadRequestf("invalid block status %q", status)
	}
	now := time.Now().UTC()
	res, err := s.client.ExecContext(ctx, `UPDATE blocks SET status = ?, updated_at = ? WHERE id = ?`, status.String(), now.Format(time.RFC3339Nano), id.String())
	if err != nil {
		return apperr.Databasef(err, "failed to update block status")
	}
	return requireRowAffected(res)
}

// ForkBlock creates a new user block with the source's content, branching
// from it: parent_id and forked_from_id both point at the source.
func (s *Store) ForkBlock(ctx context.Context, id uuid.UUID) (domain.Block, error) {
	original, err := s.GetBlock(ctx, id)
	if err != nil {
		return domain.Block{}, err
	}

	return s.CreateBlock(ctx, original.JournalId, domain.BlockTypeUser, original.Content, &id, &id)
}

// RerunBlock replays a prompt: for a user block, identical to ForkBlock;
// for an assistant block, locates the nearest preceding user block in the
// same journal and replays its content instead.
func (s *Store) RerunBlock(ctx context.Context, id uuid.UUID) (domain.Block, error) {
	original, err := s.GetBlock(ctx, id)
	if err != nil {
		return domain.Block{}, err
	}

	if original.BlockType == domain.BlockTypeUser {
		return s.CreateBlock(ctx, original.JournalId, domain.BlockTypeUser, original.Content, &id, &id)
	}

	blocks, err := s.GetBlocksForJournal(ctx, original.JournalId)
	if err != nil {
		return domain.Block{}, err
	}

	var precedingUser *domain.Block
	for i := len(blocks) - 1; i >= 0; i-- {
		b := blocks[i]
		if b.BlockType == domain.BlockTypeUser && b.CreatedAt.Before(original.CreatedAt) {
			precedingUser = &blocks[i]
			break
		}
	}
	if precedingUser == nil {
		return domain.Block{}, apperr.NotFoundf("no preceding user block found for %s", id)
	}

	return s.CreateBlock(ctx, original.JournalId, domain.BlockTypeUser, precedingUser.Content, &id, &id)
}

func scanBlockRows(rows *sql.Rows) ([]domain.Block, error) {
	blocks := make([]domain.Block, 0)
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Databasef(err, "failed to read block rows")
	}
	return blocks, nil
}

func scanBlock(row rowScanner) (domain.Block, error) {
	var b domain.Block
	var id, journalId, blockType, status, createdAt, updatedAt string
	var parentId, forkedFromId sql.NullString

	err := row.Scan(&id, &journalId, &blockType, &b.Content, &status, &parentId, &forkedFromId, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Block{}, apperr.NotFoundf("block not found")
	}
	if err != nil {
		return domain.Block{}, apperr.Databasef(err, "failed to scan block")
	}

	if b.Id, err = uuid.Parse(id); err != nil {
		return domain.Block{}, apperr.Internalf("block row has unparseable id %q", id)
	}
	if b.JournalId, err = uuid.Parse(journalId); err != nil {
		return domain.Block{}, apperr.Internalf("block row has unparseable journal_id %q", journalId)
	}
	if b.BlockType, err = domain.ParseBlockType(blockType); err != nil {
		return domain.Block{}, apperr.Internalf("block row has invalid block_type %q", blockType)
	}
	if b.Status, err = domain.ParseBlockStatus(status); err != nil {
		return domain.Block{}, apperr.Internalf("block row has invalid status %q", status)
	}
	if parentId.Valid {
		parsed, err := uuid.Parse(parentId.String)
		if err != nil {
			return domain.Block{}, apperr.Internalf("block row has unparseable parent_id %q", parentId.String)
		}
		b.ParentId = &parsed
	}
	if forkedFromId.Valid {
		parsed, err := uuid.Parse(forkedFromId.String)
		if err != nil {
			return domain.Block{}, apperr.Internalf("block row has unparseable forked_from_id %q", forkedFromId.String)
		}
		b.ForkedFromId = &parsed
	}
	if b.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return domain.Block{}, apperr.Internalf("block row has unparseable created_at %q", createdAt)
	}
	if b.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return domain.Block{}, apperr.Internalf("block row has unparseable updated_at %q", updatedAt)
	}

	return b, nil
}

func uuidPtrString(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Databasef(err, "failed to read rows affected")
	}
	if n == 0 {
		return apperr.NotFoundf("no matching row")
	}
	return nil
}
