package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	txcontext "agora/pkg/platform/tx"
)

// PostgresStore persists ledger entries in PostgreSQL. Appends join the
// caller's transaction when one is in the context, so a vote-cast append
// commits or rolls back with the vote itself.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append links the entry to the current chain head and inserts it.
// Same-election appends are serialized on the election row: two writers that
// both read the same head would fork the ledger and make VerifyChain report
// tampering on an untampered chain. The lock is taken here rather than
// trusted to callers, because lifecycle and device-reset entries are recorded
// outside any enclosing transaction. The vote-cast path joins its own
// transaction, which already holds the row.
func (s *PostgresStore) Append(ctx context.Context, entry *Entry) error {
	if dbtx, ok := txcontext.From(ctx); ok {
		return appendChained(ctx, dbtx, entry)
	}
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit append: %w", err)
	}
	if err := appendChained(ctx, dbtx, entry); err != nil {
		_ = dbtx.Rollback()
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit audit append: %w", err)
	}
	return nil
}

func appendChained(ctx context.Context, dbtx *sql.Tx, entry *Entry) error {
	var locked uuid.UUID
	err := dbtx.QueryRowContext(ctx,
		`SELECT id FROM elections WHERE id = $1 FOR UPDATE`, entry.ElectionID,
	).Scan(&locked)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lock election for audit append: %w", err)
	}

	var prev sql.NullString
	err = dbtx.QueryRowContext(ctx, `
		SELECT entry_hash FROM audit_entries
		WHERE election_id = $1 ORDER BY seq DESC LIMIT 1
	`, entry.ElectionID).Scan(&prev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read audit chain head: %w", err)
	}
	entry.PrevHash = ""
	if prev.Valid {
		entry.PrevHash = prev.String
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.EntryHash = entry.ComputeHash()

	meta, err := metadataJSON(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	_, err = dbtx.ExecContext(ctx, `
		INSERT INTO audit_entries (
			id, election_id, vote_id, action, ip_address, user_agent,
			ts, metadata, prev_hash, entry_hash
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		entry.ID, entry.ElectionID, entry.VoteID, string(entry.Action),
		entry.IPAddress, entry.UserAgent, entry.Timestamp, meta,
		entry.PrevHash, entry.EntryHash,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByElection(ctx context.Context, electionID uuid.UUID, filter Filter) ([]*Entry, error) {
	query := `
		SELECT id, election_id, vote_id, action, ip_address, user_agent,
		       ts, metadata, prev_hash, entry_hash
		FROM audit_entries
		WHERE election_id = $1
	`
	args := []any{electionID}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	query += " ORDER BY seq"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e := &Entry{}
		var voteID *uuid.UUID
		var meta []byte
		err := rows.Scan(&e.ID, &e.ElectionID, &voteID, (*string)(&e.Action),
			&e.IPAddress, &e.UserAgent, &e.Timestamp, &meta, &e.PrevHash, &e.EntryHash)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.VoteID = voteID
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
