package deadline

import (
	"testing"
	"time"

	"github.com/Ryan-RCNR/proveit-proctor/internal/clock"
)

var t0 = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)

type recorder struct {
	warnings []Warning
	expired  int
}

func newTracker(clk clock.Clock, minutes int, r *recorder) *Tracker {
	return New(clk, clk.Now(), minutes, nil,
		func(w Warning) { r.warnings = append(r.warnings, w) },
		func() { r.expired++ },
	)
}

func TestThirtyMinuteRun(t *testing.T) {
	clk := clock.NewFake(t0)
	r := &recorder{}
	tr := newTracker(clk, 30, r)

	if got := tr.Remaining(); got != 1800 {
		t.Fatalf("initial remaining = %d, want 1800", got)
	}

	clk.Set(t0.Add(25 * time.Minute))
	if got := tr.Tick(); got != 300 {
		t.Fatalf("remaining at +25m = %d, want 300", got)
	}
	if len(r.warnings) != 1 || r.warnings[0].Seconds != 300 {
		t.Fatalf("warnings at +25m = %+v, want the 300s mark", r.warnings)
	}

	clk.Set(t0.Add(29 * time.Minute))
	tr.Tick()
	if len(r.warnings) != 2 || r.warnings[1].Seconds != 60 {
		t.Fatalf("warnings at +29m = %+v, want the 60s mark", r.warnings)
	}

	clk.Set(t0.Add(30 * time.Minute))
	if got := tr.Tick(); got != 0 {
		t.Fatalf("remaining at +30m = %d, want 0", got)
	}
	if r.expired != 1 {
		t.Fatalf("expiry fired %d times, want 1", r.expired)
	}

	// A tick after expiry still reports zero and fires nothing new.
	clk.Advance(time.Second)
	if got := tr.Tick(); got != 0 {
		t.Fatalf("remaining after expiry = %d, want 0", got)
	}
	if r.expired != 1 || len(r.warnings) != 2 {
		t.Fatal("callbacks fired again after expiry")
	}
}

func TestWarningsFireOnceUnderJitter(t *testing.T) {
	clk := clock.NewFake(t0)
	r := &recorder{}
	tr := newTracker(clk, 10, r)

	// Jittery cadence: ticks land well past the thresholds.
	for _, offset := range []time.Duration{
		4 * time.Minute,
		5*time.Minute + 17*time.Second, // skipped past the 300s mark
		5*time.Minute + 18*time.Second,
		9*time.Minute + 30*time.Second, // skipped past the 60s mark
		9*time.Minute + 31*time.Second,
	} {
		clk.Set(t0.Add(offset))
		tr.Tick()
	}

	if len(r.warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %+v", len(r.warnings), r.warnings)
	}
	if r.warnings[0].Seconds != 300 || r.warnings[1].Seconds != 60 {
		t.Fatalf("warnings out of order: %+v", r.warnings)
	}
}

func TestSkippedThresholdsForShortQuiz(t *testing.T) {
	// Started with 45 seconds remaining: neither mark is ever crossed.
	clk := clock.NewFake(t0)
	r := &recorder{}
	tr := New(clk, t0.Add(-29*time.Minute-15*time.Second), 30, nil,
		func(w Warning) { r.warnings = append(r.warnings, w) },
		func() { r.expired++ },
	)

	for i := 0; i < 50; i++ {
		clk.Advance(time.Second)
		tr.Tick()
	}
	if len(r.warnings) != 0 {
		t.Fatalf("short quiz fired warnings: %+v", r.warnings)
	}
	if r.expired != 1 {
		t.Fatalf("expiry fired %d times, want 1", r.expired)
	}
}

func TestBothWarningsOnOneLateTick(t *testing.T) {
	clk := clock.NewFake(t0)
	r := &recorder{}
	tr := newTracker(clk, 10, r)

	// Process frozen from the start until 30s before the end.
	clk.Set(t0.Add(9*time.Minute + 30*time.Second))
	tr.Tick()
	if len(r.warnings) != 2 {
		t.Fatalf("got %d warnings after freeze, want both", len(r.warnings))
	}
}

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		secs int
		want string
	}{
		{1800, "30:00"},
		{300, "05:00"},
		{61, "01:01"},
		{9, "00:09"},
		{0, "00:00"},
		{-5, "00:00"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.secs); got != tt.want {
			t.Errorf("FormatRemaining(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}

func TestBandFor(t *testing.T) {
	if BandFor(1800) != BandNormal {
		t.Error("1800s should be normal")
	}
	if BandFor(300) != BandWarning {
		t.Error("300s should be warning")
	}
	if BandFor(60) != BandCritical {
		t.Error("60s should be critical")
	}
	if BandFor(0) != BandCritical {
		t.Error("0s should be critical")
	}
}
