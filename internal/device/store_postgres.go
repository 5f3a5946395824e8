package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"agora/pkg/platform/sentinel"
)

// PostgresStore persists device bindings. Both uniqueness facts are
// constraints: primary key on voter_id, unique index on fingerprint.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, b Binding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_bindings (voter_id, fingerprint, bound_at)
		VALUES ($1, $2, $3)
	`, b.VoterID, b.Fingerprint, b.BoundAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			if pqErr.Constraint == "device_bindings_fingerprint_key" {
				return sentinel.ErrFingerprintTaken
			}
			return sentinel.ErrAlreadyBound
		}
		return fmt.Errorf("insert device binding: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByVoter(ctx context.Context, voterID string) (Binding, error) {
	var b Binding
	err := s.db.QueryRowContext(ctx, `
		SELECT voter_id, fingerprint, bound_at FROM device_bindings WHERE voter_id = $1
	`, voterID).Scan(&b.VoterID, &b.Fingerprint, &b.BoundAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Binding{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Binding{}, fmt.Errorf("get device binding: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Delete(ctx context.Context, voterID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM device_bindings WHERE voter_id = $1`, voterID)
	if err != nil {
		return fmt.Errorf("delete device binding: %w", err)
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
