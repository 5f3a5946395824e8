package voter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"agora/pkg/platform/sentinel"
	txcontext "agora/pkg/platform/tx"
)

// PostgresDirectory reads voter facts from the voters table maintained by the
// registration subsystem. This engine only ever reads it, except for the
// has_voted mirror the ballot store updates inside the cast transaction.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Lookup(ctx context.Context, voterID string) (Profile, error) {
	var exec interface {
		QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	} = d.db
	if tx, ok := txcontext.From(ctx); ok {
		exec = tx
	}

	var p Profile
	err := exec.QueryRowContext(ctx, `
		SELECT id, full_name, county, kyc_status = 'VERIFIED'
		FROM voters WHERE id = $1
	`, voterID).Scan(&p.ID, &p.FullName, &p.County, &p.Verified)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("lookup voter: %w", err)
	}
	return p, nil
}

func (d *PostgresDirectory) CountEligible(ctx context.Context, county string) (int, error) {
	query := `SELECT COUNT(*) FROM voters WHERE kyc_status = 'VERIFIED'`
	args := []any{}
	if county != "" {
		query += ` AND county = $1`
		args = append(args, county)
	}
	var n int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count eligible voters: %w", err)
	}
	return n, nil
}
