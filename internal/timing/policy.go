// Package timing decides whether join, submit and result-view actions are
// allowed at a given instant. Nothing in this package reads the wall clock;
// callers pass now explicitly.
package timing

import (
	"time"
)

// Window is the position of an instant relative to an allowed interval.
type Window int

const (
	Open Window = iota
	NotStarted
	Closed
)

func (w Window) String() string {
	switch w {
	case NotStarted:
		return "not_started"
	case Closed:
		return "closed"
	default:
		return "open"
	}
}

// Policy is the scheduling configuration of one exam.
type Policy struct {
	IsTimed              bool
	Start                *time.Time
	DurationMinutes      int
	AllowLateSubmissions bool
	LateWindowMinutes    int
	// MinViewWindow keeps result links usable for at least this long after the
	// official end, even when the late window is shorter.
	MinViewWindow time.Duration
}

func minutes(m int) time.Duration {
	return time.Duration(m) * time.Minute
}

// lateWindow is zero when late submissions are disallowed.
func (p Policy) lateWindow() time.Duration {
	if !p.AllowLateSubmissions || p.LateWindowMinutes < 0 {
		return 0
	}
	return minutes(p.LateWindowMinutes)
}

// OfficialEnd is start + duration. ok is false for untimed or unscheduled exams.
func (p Policy) OfficialEnd() (time.Time, bool) {
	if !p.IsTimed || p.Start == nil {
		return time.Time{}, false
	}
	return p.Start.Add(minutes(p.DurationMinutes)), true
}

// SubmitDeadline is the last instant a submission is accepted.
func (p Policy) SubmitDeadline() (time.Time, bool) {
	end, ok := p.OfficialEnd()
	if !ok {
		return time.Time{}, false
	}
	return end.Add(p.lateWindow()), true
}

// JoinWindow places now relative to [start, start+duration+lateWindow].
// Both bounds are inclusive. A timed exam without a start is never open.
func (p Policy) JoinWindow(now time.Time) Window {
	if !p.IsTimed {
		return Open
	}
	if p.Start == nil {
		return NotStarted
	}
	if now.Before(*p.Start) {
		return NotStarted
	}
	deadline, _ := p.SubmitDeadline()
	if now.After(deadline) {
		return Closed
	}
	return Open
}

// CanJoin reports whether a participant may join at now.
func (p Policy) CanJoin(now time.Time) bool {
	return p.JoinWindow(now) == Open
}

// CanSubmit uses the same boundaries as CanJoin.
func (p Policy) CanSubmit(now time.Time) bool {
	return p.JoinWindow(now) == Open
}

// IsLate reports whether a submission at now falls after the official end but
// inside the late window.
func (p Policy) IsLate(now time.Time) bool {
	end, ok := p.OfficialEnd()
	if !ok || !now.After(end) {
		return false
	}
	return p.CanSubmit(now)
}

// viewWindow uses the configured late window whatever the late policy.
func (p Policy) viewWindow() time.Duration {
	var w time.Duration
	if p.LateWindowMinutes > 0 {
		w = minutes(p.LateWindowMinutes)
	}
	if p.MinViewWindow > w {
		w = p.MinViewWindow
	}
	return w
}

// ViewWindow places now relative to the result-viewing interval.
//
// Timed exams show results during [officialEnd, officialEnd+viewWindow].
// Untimed exams show results once the participant has submitted.
func (p Policy) ViewWindow(endedAt *time.Time, now time.Time) Window {
	if !p.IsTimed {
		if endedAt == nil {
			return NotStarted
		}
		return Open
	}
	end, ok := p.OfficialEnd()
	if !ok || now.Before(end) {
		return NotStarted
	}
	if now.After(end.Add(p.viewWindow())) {
		return Closed
	}
	return Open
}

// CanViewResult reports whether a result may be shown at now.
func (p Policy) CanViewResult(endedAt *time.Time, now time.Time) bool {
	return p.ViewWindow(endedAt, now) == Open
}
