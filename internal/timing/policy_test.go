package timing

import (
	"testing"
	"time"
)

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func timedPolicy(duration int, allowLate bool, late int) Policy {
	start := base
	return Policy{
		IsTimed:              true,
		Start:                &start,
		DurationMinutes:      duration,
		AllowLateSubmissions: allowLate,
		LateWindowMinutes:    late,
	}
}

func TestJoinWindow(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		now    time.Time
		want   Window
	}{
		{"untimed is always open", Policy{}, base.Add(-100 * time.Hour), Open},
		{"before start", timedPolicy(60, false, 0), base.Add(-time.Second), NotStarted},
		{"at start", timedPolicy(60, false, 0), base, Open},
		{"middle", timedPolicy(60, false, 0), base.Add(30 * time.Minute), Open},
		{"at official end", timedPolicy(60, false, 0), base.Add(60 * time.Minute), Open},
		{"after end without late", timedPolicy(60, false, 0), base.Add(60*time.Minute + time.Second), Closed},
		{"late window ignored when disallowed", timedPolicy(60, false, 15), base.Add(70 * time.Minute), Closed},
		{"inside late window", timedPolicy(60, true, 15), base.Add(70 * time.Minute), Open},
		{"at late deadline", timedPolicy(60, true, 15), base.Add(75 * time.Minute), Open},
		{"after late deadline", timedPolicy(60, true, 15), base.Add(75*time.Minute + time.Millisecond), Closed},
		{"timed without start", Policy{IsTimed: true, DurationMinutes: 60}, base, NotStarted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.JoinWindow(tc.now); got != tc.want {
				t.Errorf("JoinWindow() = %v, want %v", got, tc.want)
			}
			if got := tc.policy.CanSubmit(tc.now); got != (tc.want == Open) {
				t.Errorf("CanSubmit() = %v, want %v", got, tc.want == Open)
			}
		})
	}
}

func TestJoinMonotonicity(t *testing.T) {
	policies := []Policy{
		timedPolicy(45, false, 0),
		timedPolicy(45, true, 10),
		timedPolicy(1, true, 0),
	}

	for _, p := range policies {
		deadline, _ := p.SubmitDeadline()
		for offset := -120; offset <= 120; offset++ {
			now := base.Add(time.Duration(offset) * time.Minute)
			want := !now.Before(base) && !now.After(deadline)
			if got := p.CanJoin(now); got != want {
				t.Fatalf("CanJoin(%s) = %v, want %v (policy %+v)", now, got, want, p)
			}
			if p.CanSubmit(now) != p.CanJoin(now) {
				t.Fatalf("CanSubmit and CanJoin disagree at %s", now)
			}
		}
	}
}

func TestIsLate(t *testing.T) {
	p := timedPolicy(60, true, 15)

	if p.IsLate(base.Add(59 * time.Minute)) {
		t.Error("submission before official end must not be late")
	}
	if p.IsLate(base.Add(60 * time.Minute)) {
		t.Error("submission at official end must not be late")
	}
	if !p.IsLate(base.Add(61 * time.Minute)) {
		t.Error("submission inside late window must be late")
	}
	if p.IsLate(base.Add(80 * time.Minute)) {
		t.Error("submission after late window is rejected, not late")
	}
	if (Policy{}).IsLate(base) {
		t.Error("untimed exams are never late")
	}
}

func TestCanViewResult(t *testing.T) {
	ended := base.Add(10 * time.Minute)

	tests := []struct {
		name    string
		policy  Policy
		endedAt *time.Time
		now     time.Time
		want    bool
	}{
		{"untimed before submission", Policy{}, nil, base, false},
		{"untimed after submission", Policy{}, &ended, base, true},
		{"timed before end even if submitted", timedPolicy(60, true, 30), &ended, base.Add(59 * time.Minute), false},
		{"timed at official end", timedPolicy(60, true, 30), &ended, base.Add(60 * time.Minute), true},
		{"timed inside view window", timedPolicy(60, true, 30), &ended, base.Add(80 * time.Minute), true},
		{"timed at view window end", timedPolicy(60, true, 30), &ended, base.Add(90 * time.Minute), true},
		{"timed after view window", timedPolicy(60, true, 30), &ended, base.Add(91 * time.Minute), false},
		{"zero late window only at the instant", timedPolicy(60, false, 0), &ended, base.Add(60*time.Minute + time.Second), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.policy.CanViewResult(tc.endedAt, tc.now); got != tc.want {
				t.Errorf("CanViewResult() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestViewDelayForAllSubmissions(t *testing.T) {
	p := timedPolicy(90, true, 20)
	for m := -30; m < 90; m++ {
		ended := base.Add(time.Duration(m) * time.Minute)
		now := ended.Add(time.Minute)
		if now.Before(base.Add(90*time.Minute)) && p.CanViewResult(&ended, now) {
			t.Fatalf("result visible at %s before official end", now)
		}
	}
}

func TestMinViewWindow(t *testing.T) {
	p := timedPolicy(60, false, 0)
	p.MinViewWindow = 7 * 24 * time.Hour
	ended := base

	if !p.CanViewResult(&ended, base.Add(48*time.Hour)) {
		t.Error("minimum view window should keep the result visible")
	}
	if got := p.ViewWindow(&ended, base.Add(8*24*time.Hour)); got != Closed {
		t.Errorf("ViewWindow() = %v, want closed", got)
	}
	if got := p.ViewWindow(&ended, base); got != NotStarted {
		t.Errorf("ViewWindow() = %v, want not_started", got)
	}
}
