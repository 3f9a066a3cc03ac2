// Package pattern detects cyclical time-of-day/day-of-week patterns and
// short-duration burst clusters in occurrence timestamps.
package pattern

import (
	"math"
	"sort"
	"time"
)

// Kind classifies the cyclical shape of an occurrence series
type Kind string

const (
	KindBusinessHours Kind = "business_hours"
	KindNight         Kind = "night"
	KindWeekend       Kind = "weekend"
	KindUniform       Kind = "uniform"
)

// Burst grouping defaults: a maximal run of at least MinBurstEvents where
// every adjacent gap is at most DefaultBurstGap.
const (
	DefaultBurstGap = 60 * time.Second
	MinBurstEvents  = 5
)

// StrengthFloor is the pattern strength below which a series reads as
// uniform regardless of where its mass sits
const StrengthFloor = 0.3

// concentrationThreshold is the mass fraction a band must hold before the
// series is classified by that band
const concentrationThreshold = 0.5

// Cyclical describes the periodic shape of an occurrence series
type Cyclical struct {
	Kind          Kind    `json:"kind"`
	Strength      float64 `json:"strength"`
	HourHistogram [24]int `json:"hour_histogram"`
	DayHistogram  [7]int  `json:"day_histogram"`
	SampleSize    int     `json:"sample_size"`
}

// BurstIntensity tiers a burst by its event count
type BurstIntensity string

const (
	IntensityLow    BurstIntensity = "low"
	IntensityMedium BurstIntensity = "medium"
	IntensityHigh   BurstIntensity = "high"
)

// Burst is a short-duration cluster of occurrences
type Burst struct {
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	DurationSeconds float64        `json:"duration_seconds"`
	ErrorCount      int            `json:"error_count"`
	Intensity       BurstIntensity `json:"intensity"`
}

// DetectCyclical builds hour-of-day and day-of-week histograms from the
// timestamps and classifies the series. An empty series is uniform with
// zero strength.
func DetectCyclical(timestamps []time.Time) Cyclical {
	c := Cyclical{Kind: KindUniform, SampleSize: len(timestamps)}
	if len(timestamps) == 0 {
		return c
	}

	for _, ts := range timestamps {
		c.HourHistogram[ts.Hour()]++
		c.DayHistogram[int(ts.Weekday())]++
	}

	c.Strength = histogramStrength(c.HourHistogram[:])

	total := float64(len(timestamps))
	businessMass := bandMass(c.HourHistogram, 9, 17) / total
	nightMass := bandMass(c.HourHistogram, 0, 6) / total
	weekendMass := float64(c.DayHistogram[time.Saturday]+c.DayHistogram[time.Sunday]) / total

	switch {
	case weekendMass > concentrationThreshold:
		c.Kind = KindWeekend
	case c.Strength < StrengthFloor:
		c.Kind = KindUniform
	case businessMass > concentrationThreshold:
		c.Kind = KindBusinessHours
	case nightMass > concentrationThreshold:
		c.Kind = KindNight
	default:
		c.Kind = KindUniform
	}
	return c
}

// bandMass sums histogram buckets in the inclusive hour range [from, to]
func bandMass(hist [24]int, from, to int) float64 {
	sum := 0
	for h := from; h <= to; h++ {
		sum += hist[h]
	}
	return float64(sum)
}

// histogramStrength is the coefficient of variation of the histogram scaled
// into [0,1]. Higher means more concentrated, less random timing.
func histogramStrength(hist []int) float64 {
	n := float64(len(hist))
	total := 0
	for _, v := range hist {
		total += v
	}
	if total == 0 {
		return 0
	}
	mean := float64(total) / n

	var sumSq float64
	for _, v := range hist {
		d := float64(v) - mean
		sumSq += d * d
	}
	stdDev := math.Sqrt(sumSq / n)
	cv := stdDev / mean

	// A perfectly even histogram has cv 0; all mass in one bucket has
	// cv sqrt(n-1). Normalize against that ceiling.
	strength := cv / math.Sqrt(n-1)
	if strength > 1 {
		strength = 1
	}
	return strength
}

// DetectBursts walks the sorted timestamp sequence greedily left to right.
// A gap exceeding maxGap always starts a new candidate run; runs shorter
// than minEvents are discarded.
func DetectBursts(timestamps []time.Time, maxGap time.Duration, minEvents int) []Burst {
	if maxGap <= 0 {
		maxGap = DefaultBurstGap
	}
	if minEvents <= 0 {
		minEvents = MinBurstEvents
	}
	if len(timestamps) == 0 {
		return nil
	}

	sorted := make([]time.Time, len(timestamps))
	copy(sorted, timestamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var bursts []Burst
	runStart := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i].Sub(sorted[i-1]) <= maxGap {
			continue
		}
		if count := i - runStart; count >= minEvents {
			bursts = append(bursts, newBurst(sorted[runStart], sorted[i-1], count))
		}
		runStart = i
	}
	return bursts
}

func newBurst(start, end time.Time, count int) Burst {
	intensity := IntensityLow
	switch {
	case count >= 20:
		intensity = IntensityHigh
	case count >= 10:
		intensity = IntensityMedium
	}
	return Burst{
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: end.Sub(start).Seconds(),
		ErrorCount:      count,
		Intensity:       intensity,
	}
}
