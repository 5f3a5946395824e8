// Package voter exposes the narrow slice of the identity/KYC subsystem the
// voting engine consumes: whether a voter is verified, which county they are
// registered in, and whether they already voted in an election. Registration
// and document review live outside this engine.
package voter

import (
	"context"
	"sync"

	"agora/pkg/platform/sentinel"
)

// Profile carries the only facts the eligibility gate needs.
type Profile struct {
	ID       string
	FullName string
	County   string
	Verified bool
}

// Directory is the inbound port to the identity subsystem.
type Directory interface {
	Lookup(ctx context.Context, voterID string) (Profile, error)
}

// Census counts verified voters for turnout statistics. An empty county means
// the whole register.
type Census interface {
	CountEligible(ctx context.Context, county string) (int, error)
}

// MemoryDirectory backs tests and local runs.
type MemoryDirectory struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{profiles: make(map[string]Profile)}
}

func (d *MemoryDirectory) Put(p Profile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[p.ID] = p
}

func (d *MemoryDirectory) Lookup(_ context.Context, voterID string) (Profile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.profiles[voterID]
	if !ok {
		return Profile{}, sentinel.ErrNotFound
	}
	return p, nil
}

func (d *MemoryDirectory) CountEligible(_ context.Context, county string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, p := range d.profiles {
		if p.Verified && (county == "" || p.County == county) {
			n++
		}
	}
	return n, nil
}
