package election

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"agora/pkg/platform/sentinel"
	txcontext "agora/pkg/platform/tx"
)

// PostgresStore persists elections in PostgreSQL via database/sql.
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

const electionColumns = `
	id, name, scope, county, description,
	voting_date, start_seconds, end_seconds,
	status, allow_voting, results_published, emergency_pause, pause_reason,
	auto_open, auto_close, auto_publish,
	eligible_voter_count, votes_cast_count, created_at, updated_at
`

func (s *PostgresStore) CreateElection(ctx context.Context, e *Election) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	query := `
		INSERT INTO elections (` + electionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, now(), now())
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		e.ID, e.Name, string(e.Scope), nullString(e.County), e.Description,
		nullDate(e.VotingDate), int(e.StartTime), int(e.EndTime),
		string(e.Status), e.AllowVoting, e.ResultsPublished, e.EmergencyPause, e.PauseReason,
		e.AutoOpen, e.AutoClose, e.AutoPublish,
		e.EligibleVoterCount, e.VotesCastCount,
	)
	if err != nil {
		return fmt.Errorf("insert election: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetElection(ctx context.Context, id uuid.UUID) (*Election, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+electionColumns+` FROM elections WHERE id = $1`, id)
	return scanElection(row)
}

// getElectionForUpdate loads the election row with a row lock inside the
// supplied transaction.
func getElectionForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*Election, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+electionColumns+` FROM elections WHERE id = $1 FOR UPDATE`, id)
	return scanElection(row)
}

func (s *PostgresStore) UpdateElection(ctx context.Context, e *Election) error {
	query := `
		UPDATE elections SET
			name = $2, scope = $3, county = $4, description = $5,
			voting_date = $6, start_seconds = $7, end_seconds = $8,
			status = $9, allow_voting = $10, results_published = $11,
			emergency_pause = $12, pause_reason = $13,
			auto_open = $14, auto_close = $15, auto_publish = $16,
			eligible_voter_count = $17, votes_cast_count = $18,
			updated_at = now()
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		e.ID, e.Name, string(e.Scope), nullString(e.County), e.Description,
		nullDate(e.VotingDate), int(e.StartTime), int(e.EndTime),
		string(e.Status), e.AllowVoting, e.ResultsPublished, e.EmergencyPause, e.PauseReason,
		e.AutoOpen, e.AutoClose, e.AutoPublish,
		e.EligibleVoterCount, e.VotesCastCount,
	)
	if err != nil {
		return fmt.Errorf("update election: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) ListElections(ctx context.Context) ([]*Election, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+electionColumns+` FROM elections ORDER BY voting_date DESC NULLS LAST, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query elections: %w", err)
	}
	defer rows.Close()
	return scanElections(rows)
}

func (s *PostgresStore) ListAutoManaged(ctx context.Context) ([]*Election, error) {
	query := `
		SELECT ` + electionColumns + ` FROM elections
		WHERE status IN ('PENDING', 'ACTIVE')
		   OR (status = 'COMPLETED' AND auto_publish AND NOT results_published)
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query auto-managed elections: %w", err)
	}
	defer rows.Close()
	return scanElections(rows)
}

func (s *PostgresStore) UpdateSerialized(ctx context.Context, id uuid.UUID, fn func(e *Election) error) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transition tx: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	e, err := getElectionForUpdate(ctx, dbtx, id)
	if err != nil {
		return err
	}
	if err := fn(e); err != nil {
		return err
	}
	if err := s.updateInTx(ctx, dbtx, e); err != nil {
		return err
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit transition tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) updateInTx(ctx context.Context, dbtx *sql.Tx, e *Election) error {
	return s.UpdateElection(txcontext.WithTx(ctx, dbtx), e)
}

func (s *PostgresStore) DeleteElection(ctx context.Context, id uuid.UUID) error {
	var hasVotes bool
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM votes WHERE election_id = $1)`, id).Scan(&hasVotes)
	if err != nil {
		return fmt.Errorf("check election votes: %w", err)
	}
	if hasVotes {
		return sentinel.ErrInvalidState
	}
	res, err := s.execer(ctx).ExecContext(ctx, `DELETE FROM elections WHERE id = $1`, id)
	if err != nil {
		// The votes FK is ON DELETE RESTRICT; a race between the check and
		// the delete still cannot orphan a vote.
		if isForeignKeyViolation(err) {
			return sentinel.ErrInvalidState
		}
		return fmt.Errorf("delete election: %w", err)
	}
	return requireRow(res)
}

func (s *PostgresStore) CreatePosition(ctx context.Context, p *Position) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO positions (id, election_id, ord, name, description, max_votes, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		p.ID, p.ElectionID, p.Order, p.Name, p.Description, p.MaxVotes, p.Active)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrInvalidState
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPositions(ctx context.Context, electionID uuid.UUID) ([]*Position, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, election_id, ord, name, description, max_votes, active
		FROM positions WHERE election_id = $1 ORDER BY ord
	`, electionID)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []*Position
	for rows.Next() {
		p := &Position{}
		if err := rows.Scan(&p.ID, &p.ElectionID, &p.Order, &p.Name, &p.Description, &p.MaxVotes, &p.Active); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateCandidate(ctx context.Context, c *Candidate) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	query := `
		INSERT INTO candidates (id, election_id, position_id, full_name, ord, active, vote_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		c.ID, c.ElectionID, c.PositionID, c.FullName, c.Order, c.Active, c.VoteCount)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrInvalidState
		}
		if isForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCandidate(ctx context.Context, id uuid.UUID) (*Candidate, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, election_id, position_id, full_name, ord, active, vote_count
		FROM candidates WHERE id = $1
	`, id)
	c := &Candidate{}
	err := row.Scan(&c.ID, &c.ElectionID, &c.PositionID, &c.FullName, &c.Order, &c.Active, &c.VoteCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan candidate: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context, electionID uuid.UUID) ([]*Candidate, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, election_id, position_id, full_name, ord, active, vote_count
		FROM candidates WHERE election_id = $1 ORDER BY position_id, ord, full_name
	`, electionID)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []*Candidate
	for rows.Next() {
		c := &Candidate{}
		if err := rows.Scan(&c.ID, &c.ElectionID, &c.PositionID, &c.FullName, &c.Order, &c.Active, &c.VoteCount); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AdjustTally applies an atomic in-database tally increment. Never
// read-modify-write: concurrent casts must not lose updates.
func (s *PostgresStore) AdjustTally(ctx context.Context, candidateID uuid.UUID, delta int) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE candidates SET vote_count = vote_count + $2 WHERE id = $1`, candidateID, delta)
	if err != nil {
		return fmt.Errorf("adjust tally: %w", err)
	}
	return requireRow(res)
}

// AdjustVotesCast applies an atomic votes_cast_count increment. The guard in
// the WHERE clause keeps votes_cast_count from passing eligible_voter_count;
// decrements always apply.
func (s *PostgresStore) AdjustVotesCast(ctx context.Context, electionID uuid.UUID, delta int) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE elections SET votes_cast_count = votes_cast_count + $2
		WHERE id = $1 AND ($2 <= 0 OR votes_cast_count + $2 <= eligible_voter_count)
	`, electionID, delta)
	if err != nil {
		return fmt.Errorf("adjust votes cast: %w", err)
	}
	if err := requireRow(res); err == nil {
		return nil
	}
	var exists bool
	if err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM elections WHERE id = $1)`, electionID).Scan(&exists); err != nil {
		return fmt.Errorf("adjust votes cast: %w", err)
	}
	if exists {
		return sentinel.ErrRegisterFull
	}
	return sentinel.ErrNotFound
}

func scanElection(row *sql.Row) (*Election, error) {
	e := &Election{}
	var county sql.NullString
	var votingDate sql.NullTime
	var startSeconds, endSeconds int
	err := row.Scan(
		&e.ID, &e.Name, (*string)(&e.Scope), &county, &e.Description,
		&votingDate, &startSeconds, &endSeconds,
		(*string)(&e.Status), &e.AllowVoting, &e.ResultsPublished, &e.EmergencyPause, &e.PauseReason,
		&e.AutoOpen, &e.AutoClose, &e.AutoPublish,
		&e.EligibleVoterCount, &e.VotesCastCount, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan election: %w", err)
	}
	applyScanned(e, county, votingDate, startSeconds, endSeconds)
	return e, nil
}

func scanElections(rows *sql.Rows) ([]*Election, error) {
	var out []*Election
	for rows.Next() {
		e := &Election{}
		var county sql.NullString
		var votingDate sql.NullTime
		var startSeconds, endSeconds int
		err := rows.Scan(
			&e.ID, &e.Name, (*string)(&e.Scope), &county, &e.Description,
			&votingDate, &startSeconds, &endSeconds,
			(*string)(&e.Status), &e.AllowVoting, &e.ResultsPublished, &e.EmergencyPause, &e.PauseReason,
			&e.AutoOpen, &e.AutoClose, &e.AutoPublish,
			&e.EligibleVoterCount, &e.VotesCastCount, &e.CreatedAt, &e.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan election: %w", err)
		}
		applyScanned(e, county, votingDate, startSeconds, endSeconds)
		out = append(out, e)
	}
	return out, rows.Err()
}

func applyScanned(e *Election, county sql.NullString, votingDate sql.NullTime, startSeconds, endSeconds int) {
	if county.Valid {
		e.County = county.String
	}
	if votingDate.Valid {
		d := DateOf(votingDate.Time)
		e.VotingDate = &d
	}
	e.StartTime = TimeOfDay(startSeconds)
	e.EndTime = TimeOfDay(endSeconds)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDate(d *Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}
