package election

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	dErrors "agora/pkg/domain-errors"
)

// TimeOfDay is a wall-clock time as seconds since midnight. Construct via
// ParseTimeOfDay at trust boundaries; direct casting bypasses validation.
type TimeOfDay int

// ParseTimeOfDay accepts "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid time of day")
	}
	var hms [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, dErrors.New(dErrors.CodeBadRequest, "invalid time of day")
		}
		hms[i] = n
	}
	if hms[0] > 23 || hms[1] > 59 || hms[2] > 59 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "invalid time of day")
	}
	return TimeOfDay(hms[0]*3600 + hms[1]*60 + hms[2]), nil
}

// TimeOfDayOf extracts the wall-clock component of an instant.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*3600 + t.Minute()*60 + t.Second())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(t)/3600, int(t)/60%60, int(t)%60)
}

// Date is a calendar date without a time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate accepts "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, dErrors.New(dErrors.CodeBadRequest, "invalid date")
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// DateOf extracts the calendar date of an instant in its own location.
func DateOf(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return DateOf(t)
}

func (d Date) Equal(o Date) bool { return d == o }

func (d Date) Before(o Date) bool {
	if d.Year != o.Year {
		return d.Year < o.Year
	}
	if d.Month != o.Month {
		return d.Month < o.Month
	}
	return d.Day < o.Day
}

func (d Date) After(o Date) bool { return o.Before(d) }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// DaysUntil returns the number of whole calendar days from d to o.
func (d Date) DaysUntil(o Date) int {
	a := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	b := time.Date(o.Year, o.Month, o.Day, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// WindowOpen reports whether now falls inside the voting window. A nil
// votingDate means no window is configured and the window is considered open;
// status gating upstream still applies.
//
// The window requires now's calendar date to equal the voting date. When the
// end time is at or before the start time the window crosses midnight: it is
// open from the start time on the voting date until the end time on the
// following day. A naive range check silently fails for overnight windows,
// hence the asymmetric branches. now must already be in the election's
// location.
func WindowOpen(now time.Time, votingDate *Date, start, end TimeOfDay) bool {
	if votingDate == nil {
		return true
	}
	today := DateOf(now)
	clock := TimeOfDayOf(now)

	if end <= start {
		// Crosses midnight: [start, 24h) on the voting date, [0, end) the
		// day after.
		if today.Equal(*votingDate) {
			return clock >= start
		}
		if today.Equal(votingDate.Next()) {
			return clock < end
		}
		return false
	}
	return today.Equal(*votingDate) && clock >= start && clock <= end
}

// windowCloseReached reports whether the close instant has passed. For a
// normal window that is the end time on the voting date; for a
// midnight-crossing window it is the end time on the following day.
func windowCloseReached(now time.Time, votingDate Date, start, end TimeOfDay) bool {
	today := DateOf(now)
	clock := TimeOfDayOf(now)

	closeDate := votingDate
	if end <= start {
		closeDate = votingDate.Next()
	}
	return today.After(closeDate) || (today.Equal(closeDate) && clock >= end)
}

// windowOpenReached reports whether the open instant has passed.
func windowOpenReached(now time.Time, votingDate Date, start TimeOfDay) bool {
	today := DateOf(now)
	if today.Equal(votingDate) {
		return TimeOfDayOf(now) >= start
	}
	// A missed tick on the voting date must still open the election the
	// moment the worker catches up, as long as the close rule has not fired.
	return today.After(votingDate)
}

// Phase is the human-readable voting phase, used for banners and dashboards
// only. Write gating goes through WindowOpen and the lifecycle status, never
// through Phase.
type Phase string

const (
	PhaseVotingDisabled Phase = "Voting Disabled"
	PhasePaused         Phase = "Paused"
	PhaseNotActive      Phase = "Not Active"
	PhaseNoDateSet      Phase = "No Date Set"
	PhaseUpcoming       Phase = "Upcoming"
	PhaseOpensSoon      Phase = "Opens Soon"
	PhaseOpen           Phase = "Open"
	PhaseClosed         Phase = "Closed"
	PhasePassed         Phase = "Passed"
)

// DisplayStatus reports the election's effective phase at the given instant.
// The Open/Closed branch delegates to WindowOpen so the display can never
// disagree with the gate at boundary instants.
func (e *Election) DisplayStatus(now time.Time) Phase {
	if !e.AllowVoting {
		return PhaseVotingDisabled
	}
	if e.EmergencyPause {
		return PhasePaused
	}
	if e.Status != StatusActive {
		return PhaseNotActive
	}
	if e.VotingDate == nil {
		return PhaseNoDateSet
	}

	today := DateOf(now)
	switch {
	case today.Before(*e.VotingDate):
		return PhaseUpcoming
	case WindowOpen(now, e.VotingDate, e.StartTime, e.EndTime):
		return PhaseOpen
	case today.Equal(*e.VotingDate) && TimeOfDayOf(now) < e.StartTime:
		return PhaseOpensSoon
	case windowCloseReached(now, *e.VotingDate, e.StartTime, e.EndTime):
		closeDate := *e.VotingDate
		if e.EndTime <= e.StartTime {
			closeDate = e.VotingDate.Next()
		}
		if today.After(closeDate) {
			return PhasePassed
		}
		return PhaseClosed
	default:
		// Anything left is a same-day gap before the close instant.
		return PhaseClosed
	}
}

// IsVotingOpen is the write-path predicate: lifecycle flags plus the window.
func (e *Election) IsVotingOpen(now time.Time) bool {
	if !e.AllowVoting || e.EmergencyPause || e.Status != StatusActive {
		return false
	}
	return WindowOpen(now, e.VotingDate, e.StartTime, e.EndTime)
}
