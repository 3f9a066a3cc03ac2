package pattern

import (
	"testing"
	"time"
)

// stampsAt generates count timestamps spaced by step starting at start
func stampsAt(start time.Time, count int, step time.Duration) []time.Time {
	stamps := make([]time.Time, count)
	for i := range stamps {
		stamps[i] = start.Add(time.Duration(i) * step)
	}
	return stamps
}

func TestDetectCyclicalEmpty(t *testing.T) {
	c := DetectCyclical(nil)
	if c.Kind != KindUniform {
		t.Errorf("Kind = %q, want uniform", c.Kind)
	}
	if c.Strength != 0 {
		t.Errorf("Strength = %v, want 0", c.Strength)
	}
	if c.SampleSize != 0 {
		t.Errorf("SampleSize = %d, want 0", c.SampleSize)
	}
}

func TestDetectCyclicalBusinessHours(t *testing.T) {
	// Weekday occurrences concentrated at 10:00 and 14:00
	var stamps []time.Time
	monday := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 5; day++ {
		for i := 0; i < 10; i++ {
			stamps = append(stamps, monday.AddDate(0, 0, day).Add(10*time.Hour))
			stamps = append(stamps, monday.AddDate(0, 0, day).Add(14*time.Hour))
		}
	}

	c := DetectCyclical(stamps)
	if c.Kind != KindBusinessHours {
		t.Errorf("Kind = %q, want business_hours", c.Kind)
	}
	if c.Strength < StrengthFloor {
		t.Errorf("concentrated series should exceed the strength floor, got %v", c.Strength)
	}
	if c.HourHistogram[10] != 50 || c.HourHistogram[14] != 50 {
		t.Errorf("unexpected hour histogram: %v", c.HourHistogram)
	}
}

func TestDetectCyclicalNight(t *testing.T) {
	var stamps []time.Time
	monday := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	for day := 0; day < 5; day++ {
		for i := 0; i < 10; i++ {
			stamps = append(stamps, monday.AddDate(0, 0, day).Add(3*time.Hour))
		}
	}

	c := DetectCyclical(stamps)
	if c.Kind != KindNight {
		t.Errorf("Kind = %q, want night", c.Kind)
	}
}

func TestDetectCyclicalWeekend(t *testing.T) {
	// Mass on Saturday and Sunday wins over hour concentration
	var stamps []time.Time
	saturday := time.Date(2026, 1, 17, 11, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 1, 18, 11, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		stamps = append(stamps, saturday, sunday)
	}
	// A little weekday noise
	stamps = append(stamps, time.Date(2026, 1, 13, 11, 0, 0, 0, time.UTC))

	c := DetectCyclical(stamps)
	if c.Kind != KindWeekend {
		t.Errorf("Kind = %q, want weekend", c.Kind)
	}
}

func TestDetectCyclicalUniform(t *testing.T) {
	// One event every hour of a full day, repeated: perfectly flat
	var stamps []time.Time
	start := time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 72; i++ {
		stamps = append(stamps, start.Add(time.Duration(i)*time.Hour))
	}

	c := DetectCyclical(stamps)
	if c.Kind != KindUniform {
		t.Errorf("Kind = %q, want uniform", c.Kind)
	}
	if c.Strength >= StrengthFloor {
		t.Errorf("flat series should score below the strength floor, got %v", c.Strength)
	}
}

func TestDetectBurstsGroupsBySixtySecondGaps(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	// 10 events a second apart, a 2 hour silence, then 8 more
	stamps := stampsAt(base, 10, time.Second)
	stamps = append(stamps, stampsAt(base.Add(2*time.Hour), 8, time.Second)...)

	bursts := DetectBursts(stamps, 60*time.Second, 5)
	if len(bursts) != 2 {
		t.Fatalf("expected 2 bursts, got %d", len(bursts))
	}
	if bursts[0].ErrorCount != 10 || bursts[1].ErrorCount != 8 {
		t.Errorf("burst counts = %d, %d, want 10, 8", bursts[0].ErrorCount, bursts[1].ErrorCount)
	}
	if bursts[0].Intensity != IntensityMedium {
		t.Errorf("10-event burst should be medium, got %q", bursts[0].Intensity)
	}
	if bursts[1].Intensity != IntensityLow {
		t.Errorf("8-event burst should be low, got %q", bursts[1].Intensity)
	}
	if bursts[0].DurationSeconds != 9 {
		t.Errorf("DurationSeconds = %v, want 9", bursts[0].DurationSeconds)
	}
}

func TestDetectBurstsDiscardsShortRuns(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	// Runs of 4 separated by long gaps never reach the minimum
	var stamps []time.Time
	for run := 0; run < 3; run++ {
		stamps = append(stamps, stampsAt(base.Add(time.Duration(run)*time.Hour), 4, time.Second)...)
	}

	bursts := DetectBursts(stamps, 60*time.Second, 5)
	if len(bursts) != 0 {
		t.Errorf("expected no bursts, got %d", len(bursts))
	}
}

func TestDetectBurstsBoundaryGap(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	// Gaps of exactly 60s keep the run alive
	stamps := stampsAt(base, 6, 60*time.Second)
	bursts := DetectBursts(stamps, 60*time.Second, 5)
	if len(bursts) != 1 {
		t.Fatalf("expected 1 burst with exact boundary gaps, got %d", len(bursts))
	}
	if bursts[0].ErrorCount != 6 {
		t.Errorf("ErrorCount = %d, want 6", bursts[0].ErrorCount)
	}

	// A 61s gap splits the run
	stamps = stampsAt(base, 5, time.Second)
	stamps = append(stamps, stampsAt(base.Add(4*time.Second+61*time.Second), 5, time.Second)...)
	bursts = DetectBursts(stamps, 60*time.Second, 5)
	if len(bursts) != 2 {
		t.Errorf("expected 2 bursts split by a 61s gap, got %d", len(bursts))
	}
}

func TestDetectBurstsUnsortedInput(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	stamps := stampsAt(base, 5, time.Second)
	// Reverse in place
	for i, j := 0, len(stamps)-1; i < j; i, j = i+1, j-1 {
		stamps[i], stamps[j] = stamps[j], stamps[i]
	}

	bursts := DetectBursts(stamps, 60*time.Second, 5)
	if len(bursts) != 1 {
		t.Fatalf("expected 1 burst from unsorted input, got %d", len(bursts))
	}
	if !bursts[0].StartTime.Equal(base) {
		t.Errorf("StartTime = %v, want %v", bursts[0].StartTime, base)
	}
}

func TestDetectBurstsHighIntensity(t *testing.T) {
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	bursts := DetectBursts(stampsAt(base, 25, time.Second), 60*time.Second, 5)
	if len(bursts) != 1 {
		t.Fatalf("expected 1 burst, got %d", len(bursts))
	}
	if bursts[0].Intensity != IntensityHigh {
		t.Errorf("25-event burst should be high, got %q", bursts[0].Intensity)
	}
}
