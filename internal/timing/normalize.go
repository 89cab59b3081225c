package timing

import (
	"errors"
	"time"
)

var (
	ErrMissingDuration    = errors.New("timed exam requires a positive duration or a start and end")
	ErrMissingStart       = errors.New("timed exam requires a scheduled start")
	ErrEndBeforeStart     = errors.New("scheduled end must be after scheduled start")
	ErrNegativeLateWindow = errors.New("late window cannot be negative")
)

// Schedule is the mutable timing configuration of an exam.
type Schedule struct {
	IsTimed              bool
	Start                *time.Time
	End                  *time.Time
	DurationMinutes      *int
	AllowLateSubmissions bool
	LateWindowMinutes    int
}

// Normalize resolves a schedule into its canonical form.
//
// Untimed schedules are cleared. For timed schedules any two of start, end
// and duration determine the third; when all three are given, start plus
// duration wins and end is recomputed.
func Normalize(s *Schedule) error {
	if s.LateWindowMinutes < 0 {
		return ErrNegativeLateWindow
	}

	if !s.IsTimed {
		s.Start = nil
		s.End = nil
		s.DurationMinutes = nil
		s.AllowLateSubmissions = false
		s.LateWindowMinutes = 0
		return nil
	}

	if !s.AllowLateSubmissions {
		s.LateWindowMinutes = 0
	}

	hasDuration := s.DurationMinutes != nil && *s.DurationMinutes > 0
	if s.DurationMinutes != nil && *s.DurationMinutes <= 0 {
		return ErrMissingDuration
	}

	switch {
	case s.Start != nil && hasDuration:
		end := s.Start.Add(minutes(*s.DurationMinutes))
		s.End = &end
	case s.Start != nil && s.End != nil:
		if !s.End.After(*s.Start) {
			return ErrEndBeforeStart
		}
		d := int(s.End.Sub(*s.Start).Round(time.Minute) / time.Minute)
		if d <= 0 {
			return ErrMissingDuration
		}
		s.DurationMinutes = &d
		end := s.Start.Add(minutes(d))
		s.End = &end
	case s.End != nil && hasDuration:
		start := s.End.Add(-minutes(*s.DurationMinutes))
		s.Start = &start
	case s.Start == nil:
		return ErrMissingStart
	default:
		return ErrMissingDuration
	}

	return nil
}

// PolicyOf builds the evaluation policy for a normalized schedule.
func PolicyOf(s Schedule, minView time.Duration) Policy {
	p := Policy{
		IsTimed:              s.IsTimed,
		Start:                s.Start,
		AllowLateSubmissions: s.AllowLateSubmissions,
		LateWindowMinutes:    s.LateWindowMinutes,
		MinViewWindow:        minView,
	}
	if s.DurationMinutes != nil {
		p.DurationMinutes = *s.DurationMinutes
	}
	return p
}
