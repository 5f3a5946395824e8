// Package ballot records votes. Its cast transaction is the single
// serialization point of the engine: one vote per (election, voter), enforced
// at the storage layer, with tallies and the audit ledger updated in the same
// atomic unit.
package ballot

import (
	"time"

	"github.com/google/uuid"
)

// Selections maps each position to the chosen candidate. A valid ballot has
// exactly one entry per active position.
type Selections map[uuid.UUID]uuid.UUID

// Vote is the stored record of one cast ballot. Created exactly once, never
// updated; removal happens only through the administrative invalidation path.
type Vote struct {
	ID           uuid.UUID
	ElectionID   uuid.UUID
	VoterID      string
	CandidateIDs []uuid.UUID
	VoteHash     string
	IPAddress    string
	Fingerprint  string
	Timestamp    time.Time
	Token        uuid.UUID
}

// Receipt is all the voter ever gets back: proof of inclusion, never ballot
// contents.
type Receipt struct {
	Token     uuid.UUID `json:"token"`
	Timestamp time.Time `json:"timestamp"`
}
