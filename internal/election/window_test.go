package election

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTimeOfDay(t *testing.T, s string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func at(t *testing.T, date, clock string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", date+" "+clock)
	require.NoError(t, err)
	return ts
}

func TestWindowOpenNormalDay(t *testing.T) {
	date := mustDate(t, "2026-03-10")
	start := mustTimeOfDay(t, "08:00")
	end := mustTimeOfDay(t, "17:00")

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before start", at(t, "2026-03-10", "07:59"), false},
		{"at start", at(t, "2026-03-10", "08:00"), true},
		{"midday", at(t, "2026-03-10", "12:30"), true},
		{"at end", at(t, "2026-03-10", "17:00"), true},
		{"after end", at(t, "2026-03-10", "17:01"), false},
		{"wrong day", at(t, "2026-03-11", "12:00"), false},
		{"day before", at(t, "2026-03-09", "12:00"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WindowOpen(tt.now, &date, start, end))
		})
	}
}

func TestWindowOpenCrossesMidnight(t *testing.T) {
	date := mustDate(t, "2026-03-10")
	start := mustTimeOfDay(t, "22:00")
	end := mustTimeOfDay(t, "02:00")

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"voting day before start", at(t, "2026-03-10", "21:00"), false},
		{"voting day at start", at(t, "2026-03-10", "22:00"), true},
		{"voting day late evening", at(t, "2026-03-10", "23:00"), true},
		{"next day before end", at(t, "2026-03-11", "01:00"), true},
		{"next day at end", at(t, "2026-03-11", "02:00"), false},
		{"next day after end", at(t, "2026-03-11", "03:00"), false},
		{"two days later", at(t, "2026-03-12", "01:00"), false},
		{"day before window", at(t, "2026-03-09", "23:00"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WindowOpen(tt.now, &date, start, end))
		})
	}
}

func TestWindowOpenEqualStartEndCrossesMidnight(t *testing.T) {
	// end == start is treated as a crossing window, not an empty one.
	date := mustDate(t, "2026-03-10")
	tod := mustTimeOfDay(t, "12:00")

	assert.True(t, WindowOpen(at(t, "2026-03-10", "12:00"), &date, tod, tod))
	assert.True(t, WindowOpen(at(t, "2026-03-10", "23:59"), &date, tod, tod))
	assert.True(t, WindowOpen(at(t, "2026-03-11", "11:59"), &date, tod, tod))
	assert.False(t, WindowOpen(at(t, "2026-03-11", "12:00"), &date, tod, tod))
	assert.False(t, WindowOpen(at(t, "2026-03-10", "11:00"), &date, tod, tod))
}

func TestWindowOpenNilDate(t *testing.T) {
	assert.True(t, WindowOpen(at(t, "2026-03-10", "03:00"), nil, mustTimeOfDay(t, "08:00"), mustTimeOfDay(t, "17:00")))
}

func activeElection(t *testing.T, date string, start, end string) *Election {
	t.Helper()
	d := mustDate(t, date)
	return &Election{
		Name:        "General Election",
		Scope:       ScopeNational,
		VotingDate:  &d,
		StartTime:   mustTimeOfDay(t, start),
		EndTime:     mustTimeOfDay(t, end),
		Status:      StatusActive,
		AllowVoting: true,
	}
}

func TestIsVotingOpenGatesOnLifecycle(t *testing.T) {
	now := at(t, "2026-03-10", "12:00")

	e := activeElection(t, "2026-03-10", "08:00", "17:00")
	assert.True(t, e.IsVotingOpen(now))

	e.AllowVoting = false
	assert.False(t, e.IsVotingOpen(now), "allow_voting off closes the gate even inside the window")

	e.AllowVoting = true
	e.EmergencyPause = true
	assert.False(t, e.IsVotingOpen(now), "emergency pause overrides the window")

	e.EmergencyPause = false
	e.Status = StatusPending
	assert.False(t, e.IsVotingOpen(now), "only ACTIVE elections accept ballots")
}

func TestDisplayStatusPhases(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Election)
		now    time.Time
		want   Phase
	}{
		{"disabled", func(e *Election) { e.AllowVoting = false }, at(t, "2026-03-10", "12:00"), PhaseVotingDisabled},
		{"paused", func(e *Election) { e.EmergencyPause = true }, at(t, "2026-03-10", "12:00"), PhasePaused},
		{"not active", func(e *Election) { e.Status = StatusPending }, at(t, "2026-03-10", "12:00"), PhaseNotActive},
		{"no date", func(e *Election) { e.VotingDate = nil }, at(t, "2026-03-10", "12:00"), PhaseNoDateSet},
		{"upcoming", nil, at(t, "2026-03-09", "12:00"), PhaseUpcoming},
		{"opens soon", nil, at(t, "2026-03-10", "07:00"), PhaseOpensSoon},
		{"open", nil, at(t, "2026-03-10", "12:00"), PhaseOpen},
		{"closed same day", nil, at(t, "2026-03-10", "18:00"), PhaseClosed},
		{"passed", nil, at(t, "2026-03-11", "09:00"), PhasePassed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := activeElection(t, "2026-03-10", "08:00", "17:00")
			if tt.mutate != nil {
				tt.mutate(e)
			}
			assert.Equal(t, tt.want, e.DisplayStatus(tt.now))
		})
	}
}

func TestDisplayStatusCrossingWindowClosesNextDay(t *testing.T) {
	e := activeElection(t, "2026-03-10", "22:00", "02:00")

	assert.Equal(t, PhaseOpen, e.DisplayStatus(at(t, "2026-03-11", "01:00")))
	assert.Equal(t, PhaseClosed, e.DisplayStatus(at(t, "2026-03-11", "03:00")))
	assert.Equal(t, PhasePassed, e.DisplayStatus(at(t, "2026-03-12", "09:00")))
}

func TestDaysUntil(t *testing.T) {
	a := mustDate(t, "2026-03-10")
	b := mustDate(t, "2026-03-13")
	assert.Equal(t, 3, a.DaysUntil(b))
	assert.Equal(t, -3, b.DaysUntil(a))
	assert.Equal(t, 0, a.DaysUntil(a))
}
