// Package audit keeps the append-only, hash-linked record of election
// events. The ledger proves that a vote occurred, never what it contained:
// ballot contents stay in the vote record, outside this package.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action classifies ledger entries.
type Action string

const (
	ActionVoteCast         Action = "VOTE_CAST"
	ActionVoteVerified     Action = "VOTE_VERIFIED"
	ActionVoteInvalidated  Action = "VOTE_INVALIDATED"
	ActionBallotOpened     Action = "BALLOT_OPENED"
	ActionBallotClosed     Action = "BALLOT_CLOSED"
	ActionResultsPublished Action = "RESULTS_PUBLISHED"
	ActionEmergencyPause   Action = "EMERGENCY_PAUSE"
	ActionEmergencyResume  Action = "EMERGENCY_RESUME"
	ActionDeviceReset      Action = "DEVICE_RESET"
)

// Entry is one ledger record. Entries are never mutated or deleted; each
// carries the hash of its predecessor within the same election so insertion,
// removal, or edits anywhere in the chain are detectable.
type Entry struct {
	ID         uuid.UUID
	ElectionID uuid.UUID
	VoteID     *uuid.UUID
	Action     Action
	IPAddress  string
	UserAgent  string
	Timestamp  time.Time
	Metadata   map[string]string
	PrevHash   string
	EntryHash  string
}

// ComputeHash derives the tamper-evidence hash over the entry's immutable
// fields and its predecessor's hash. Metadata keys are sorted so the digest
// is deterministic.
func (e *Entry) ComputeHash() string {
	voteID := ""
	if e.VoteID != nil {
		voteID = e.VoteID.String()
	}

	keys := make([]string, 0, len(e.Metadata))
	for k := range e.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	meta := make([]string, 0, len(keys))
	for _, k := range keys {
		meta = append(meta, k+"="+e.Metadata[k])
	}

	payload := strings.Join([]string{
		e.PrevHash,
		e.ElectionID.String(),
		voteID,
		string(e.Action),
		e.IPAddress,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
		strings.Join(meta, "&"),
	}, "|")
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifyChain recomputes every hash in an election's ledger slice (oldest
// first) and reports the first entry whose linkage or digest is wrong.
func VerifyChain(entries []*Entry) error {
	prev := ""
	for i, e := range entries {
		if e.PrevHash != prev {
			return fmt.Errorf("audit entry %d (%s): broken chain link", i, e.ID)
		}
		if e.ComputeHash() != e.EntryHash {
			return fmt.Errorf("audit entry %d (%s): hash mismatch", i, e.ID)
		}
		prev = e.EntryHash
	}
	return nil
}

// Filter narrows audit trail reads.
type Filter struct {
	Action Action
	Since  time.Time
	Until  time.Time
	Limit  int
}

// metadataJSON keeps the postgres store free of encoding decisions.
func metadataJSON(m map[string]string) ([]byte, error) {
	if m == nil {
		m = map[string]string{}
	}
	return json.Marshal(m)
}
