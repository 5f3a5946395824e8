package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain error codes.
//
// These represent factual states about stored records, not validation
// failures:
// - ErrNotFound: record does not exist in the store
// - ErrDuplicateVote: the (election, voter) uniqueness constraint fired
// - ErrFingerprintTaken: fingerprint already bound to another voter
// - ErrAlreadyBound: voter already has a device binding
// - ErrInvalidState: record in wrong state for the requested operation
// - ErrRegisterFull: votes cast would pass the eligible register count
// - ErrUnavailable: backing store temporarily unreachable
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateVote    = errors.New("duplicate vote")
	ErrFingerprintTaken = errors.New("fingerprint taken")
	ErrAlreadyBound     = errors.New("already bound")
	ErrInvalidState     = errors.New("invalid state")
	ErrRegisterFull     = errors.New("register full")
	ErrUnavailable      = errors.New("unavailable")
)
