package audit

import (
	"context"

	"github.com/google/uuid"
)

// Store is the ledger's persistence seam. Append must link the new entry to
// the election's current chain head; implementations serialize appends per
// election (the vote transaction already holds the election row, and the
// lifecycle worker locks it).
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListByElection(ctx context.Context, electionID uuid.UUID, filter Filter) ([]*Entry, error)
}
