package ballot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"agora/pkg/platform/sentinel"
	txcontext "agora/pkg/platform/tx"
)

// PostgresStore persists votes. Every method joins the transaction carried in
// the context so the cast steps commit or roll back as one unit.
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

func (s *PostgresStore) InsertVote(ctx context.Context, v *Vote) error {
	exec := s.execer(ctx)
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}

	// votes_election_voter_key is the uniqueness constraint the whole design
	// leans on: the second of two racing inserts fails here, inside its own
	// transaction, and surfaces as "already voted".
	_, err := exec.ExecContext(ctx, `
		INSERT INTO votes (id, election_id, voter_id, vote_hash, ip_address, fingerprint, ts, token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, v.ID, v.ElectionID, v.VoterID, v.VoteHash, v.IPAddress, v.Fingerprint, v.Timestamp, v.Token)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrDuplicateVote
		}
		return fmt.Errorf("insert vote: %w", err)
	}

	for _, candidateID := range v.CandidateIDs {
		if _, err := exec.ExecContext(ctx, `
			INSERT INTO vote_selections (vote_id, candidate_id) VALUES ($1, $2)
		`, v.ID, candidateID); err != nil {
			return fmt.Errorf("insert vote selection: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) MarkVoted(ctx context.Context, voterID string, votedAt time.Time) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE voters SET has_voted = TRUE, voted_at = $2 WHERE id = $1
	`, voterID, votedAt)
	if err != nil {
		return fmt.Errorf("mark voted: %w", err)
	}
	return nil
}

func (s *PostgresStore) ClearVoted(ctx context.Context, voterID string) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE voters SET has_voted = FALSE, voted_at = NULL WHERE id = $1
	`, voterID)
	if err != nil {
		return fmt.Errorf("clear voted: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasVoted(ctx context.Context, electionID uuid.UUID, voterID string) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM votes WHERE election_id = $1 AND voter_id = $2)
	`, electionID, voterID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check has voted: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) GetVote(ctx context.Context, id uuid.UUID) (*Vote, error) {
	return s.getVote(ctx, `WHERE id = $1`, id)
}

func (s *PostgresStore) GetVoteByToken(ctx context.Context, token uuid.UUID) (*Vote, error) {
	return s.getVote(ctx, `WHERE token = $1`, token)
}

func (s *PostgresStore) getVote(ctx context.Context, where string, arg any) (*Vote, error) {
	exec := s.execer(ctx)
	v := &Vote{}
	err := exec.QueryRowContext(ctx, `
		SELECT id, election_id, voter_id, vote_hash, ip_address, fingerprint, ts, token
		FROM votes `+where,
		arg,
	).Scan(&v.ID, &v.ElectionID, &v.VoterID, &v.VoteHash, &v.IPAddress, &v.Fingerprint, &v.Timestamp, &v.Token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan vote: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT candidate_id FROM vote_selections WHERE vote_id = $1
	`, v.ID)
	if err != nil {
		return nil, fmt.Errorf("query vote selections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var candidateID uuid.UUID
		if err := rows.Scan(&candidateID); err != nil {
			return nil, fmt.Errorf("scan vote selection: %w", err)
		}
		v.CandidateIDs = append(v.CandidateIDs, candidateID)
	}
	return v, rows.Err()
}

func (s *PostgresStore) DeleteVote(ctx context.Context, id uuid.UUID) error {
	exec := s.execer(ctx)
	if _, err := exec.ExecContext(ctx, `DELETE FROM vote_selections WHERE vote_id = $1`, id); err != nil {
		return fmt.Errorf("delete vote selections: %w", err)
	}
	res, err := exec.ExecContext(ctx, `DELETE FROM votes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete vote: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ElectionHasVotes(ctx context.Context, electionID uuid.UUID) (bool, error) {
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM votes WHERE election_id = $1)`, electionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check election votes: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) CountVotes(ctx context.Context, electionID uuid.UUID) (int, error) {
	var n int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM votes WHERE election_id = $1`, electionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count votes: %w", err)
	}
	return n, nil
}
