package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	dErrors "agora/pkg/domain-errors"
	"agora/pkg/requestcontext"
)

// Service appends ledger entries and answers trail queries. It enriches
// entries with the actor context carried in the request context.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Record appends one entry, stamping actor context from ctx. The timestamp is
// the request-scoped instant so every record of one request agrees.
func (s *Service) Record(ctx context.Context, electionID uuid.UUID, voteID *uuid.UUID, action Action, metadata map[string]string) error {
	ua := requestcontext.UserAgent(ctx)
	if metadata == nil {
		metadata = map[string]string{}
	}
	if summary := summarizeUserAgent(ua); summary != "" {
		metadata["client"] = summary
	}
	if reqID := requestcontext.RequestID(ctx); reqID != "" {
		metadata["request_id"] = reqID
	}

	entry := &Entry{
		ElectionID: electionID,
		VoteID:     voteID,
		Action:     action,
		IPAddress:  requestcontext.ClientIP(ctx),
		UserAgent:  ua,
		Timestamp:  requestcontext.Now(ctx),
		Metadata:   metadata,
	}
	return s.store.Append(ctx, entry)
}

// Trail returns an election's ledger entries, oldest first.
func (s *Service) Trail(ctx context.Context, electionID uuid.UUID, filter Filter) ([]*Entry, error) {
	return s.store.ListByElection(ctx, electionID, filter)
}

// Verify walks the full chain for an election and reports tampering. A
// failure here is fatal for the record and is surfaced to the admin path
// only, never auto-corrected.
func (s *Service) Verify(ctx context.Context, electionID uuid.UUID) error {
	entries, err := s.store.ListByElection(ctx, electionID, Filter{})
	if err != nil {
		return err
	}
	if err := VerifyChain(entries); err != nil {
		return dErrors.Wrap(err, dErrors.CodeIntegrityFailure, "audit chain verification failed")
	}
	return nil
}

// summarizeUserAgent reduces a raw User-Agent to "Browser x.y on OS" for the
// ledger metadata; the raw string is stored alongside for forensics.
func summarizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return ""
	}
	summary := name
	if version != "" {
		summary += " " + version
	}
	if os := ua.OS(); os != "" {
		summary += " on " + os
	}
	return summary
}
