// Package schedule holds the send-window arithmetic used by campaigns
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// maxProbeAttempts bounds the iterative local-to-UTC correction
const maxProbeAttempts = 5

// ErrInvalidWindow is returned for malformed send windows
var ErrInvalidWindow = errors.New("invalid send window")

// TimeOfDay is a local wall-clock time
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an HH:MM string
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time of day %q must be HH:MM", ErrInvalidWindow, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// String formats the time of day as HH:MM
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// LocalTimeToUTC returns the instant at which the wall clock in loc shows tod on
// the local calendar day of day. The guess starts from the naive UTC reading and
// is corrected by the observed wall-clock difference until it converges, which
// keeps it right across daylight-saving transitions. In a DST gap the last
// guess is returned.
func LocalTimeToUTC(day time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	want := time.Date(y, m, d, tod.Hour, tod.Minute, 0, 0, time.UTC)

	guess := want
	for attempt := 0; attempt < maxProbeAttempts; attempt++ {
		local := guess.In(loc)
		seen := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), 0, 0, time.UTC)
		diff := want.Sub(seen)
		if diff == 0 {
			break
		}
		guess = guess.Add(diff)
	}
	return guess.UTC()
}

// Window is a daily send window in a campaign timezone with a daily cap
type Window struct {
	Start    TimeOfDay
	End      TimeOfDay
	Location *time.Location
	// MessagesPerDay of zero or less disables the cap
	MessagesPerDay int
}

// NewWindow builds a window from HH:MM bounds and an IANA timezone name
func NewWindow(start, end, timezone string, messagesPerDay int) (Window, error) {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		return Window{}, err
	}
	if e.minutes() <= s.minutes() {
		return Window{}, fmt.Errorf("%w: end %s must be after start %s", ErrInvalidWindow, e, s)
	}
	if timezone == "" {
		timezone = "UTC"
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Window{}, fmt.Errorf("%w: unknown timezone %q", ErrInvalidWindow, timezone)
	}
	return Window{Start: s, End: e, Location: loc, MessagesPerDay: messagesPerDay}, nil
}

// localNoon anchors a local calendar day away from midnight DST jumps
func (w Window) localNoon(t time.Time, addDays int) time.Time {
	l := t.In(w.Location)
	return time.Date(l.Year(), l.Month(), l.Day()+addDays, 12, 0, 0, 0, w.Location)
}

// DayBounds returns the UTC instants of the local midnights around now
func (w Window) DayBounds(now time.Time) (from, to time.Time) {
	l := now.In(w.Location)
	from = time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, w.Location)
	to = time.Date(l.Year(), l.Month(), l.Day()+1, 0, 0, 0, 0, w.Location)
	return from.UTC(), to.UTC()
}

// StartOn returns the window start on the local day of t shifted by addDays
func (w Window) StartOn(t time.Time, addDays int) time.Time {
	return LocalTimeToUTC(w.localNoon(t, addDays), w.Start, w.Location)
}

// EndOn returns the window end on the local day of t shifted by addDays
func (w Window) EndOn(t time.Time, addDays int) time.Time {
	return LocalTimeToUTC(w.localNoon(t, addDays), w.End, w.Location)
}

// Decision reasons
const (
	ReasonDailyLimit   = "daily_limit_reached"
	ReasonBeforeWindow = "before_window"
	ReasonAfterWindow  = "after_window"
	ReasonInWindow     = "within_window"
)

// Decision is the outcome of checking a send against the window
type Decision struct {
	Reschedule bool
	// At is the new due time when Reschedule is set
	At     time.Time
	Reason string
}

// Decide checks a send at now against the window and the number of messages
// already sent today. Inside the window with the cap not reached nothing
// changes, even for a job that is already past due.
func Decide(now time.Time, w Window, sentToday int64) Decision {
	if w.MessagesPerDay > 0 && sentToday >= int64(w.MessagesPerDay) {
		return Decision{Reschedule: true, At: w.StartOn(now, 1), Reason: ReasonDailyLimit}
	}
	if now.Before(w.StartOn(now, 0)) {
		return Decision{Reschedule: true, At: w.StartOn(now, 0), Reason: ReasonBeforeWindow}
	}
	if !now.Before(w.EndOn(now, 0)) {
		return Decision{Reschedule: true, At: w.StartOn(now, 1), Reason: ReasonAfterWindow}
	}
	return Decision{Reason: ReasonInWindow}
}

// Slots spreads n sends evenly over the window, at most MessagesPerDay per
// local day, starting no earlier than from.
func (w Window) Slots(from time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	perDay := w.MessagesPerDay
	if perDay <= 0 {
		perDay = n
	}

	out := make([]time.Time, 0, n)
	for day := 0; len(out) < n; day++ {
		start, end := w.StartOn(from, day), w.EndOn(from, day)
		step := end.Sub(start) / time.Duration(perDay)
		for k := 0; k < perDay && len(out) < n; k++ {
			at := start.Add(time.Duration(k) * step)
			if at.Before(from) {
				continue
			}
			out = append(out, at)
		}
	}
	return out
}
