package ballot

import (
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"time"

	dErrors "agora/pkg/domain-errors"
)

// Hasher computes and checks vote integrity hashes. The secret material keeps
// an attacker with raw table access from forging a consistent record.
type Hasher struct {
	secret string
}

func NewHasher(secret string) *Hasher {
	return &Hasher{secret: secret}
}

// Compute derives the tamper-evidence hash from the vote's identity fields.
// Candidate choices are deliberately excluded: the hash proves the record's
// authenticity without encoding ballot contents.
func (h *Hasher) Compute(voterID, electionID string, ts time.Time, token string) string {
	payload := strings.Join([]string{
		voterID,
		electionID,
		ts.UTC().Format(time.RFC3339Nano),
		token,
		h.secret,
	}, "|")
	sum := sha512.Sum512([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the hash from the stored fields and compares. A mismatch
// is fatal for the record and must never be silently ignored.
func (h *Hasher) Verify(v *Vote) error {
	expected := h.Compute(v.VoterID, v.ElectionID.String(), v.Timestamp, v.Token.String())
	if expected != v.VoteHash {
		return dErrors.New(dErrors.CodeIntegrityFailure, "vote hash mismatch")
	}
	return nil
}
