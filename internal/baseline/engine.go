// Package baseline computes per-(error type, platform, period) statistical
// baselines from historical occurrence counts and evaluates live counts
// against them for anomaly detection.
package baseline

import (
	"math"
	"sort"
	"time"
)

// PeriodKind selects the aggregation period of a baseline
type PeriodKind string

const (
	PeriodHourly PeriodKind = "hourly"
	PeriodDaily  PeriodKind = "daily"
	PeriodWeekly PeriodKind = "weekly"
)

// Duration returns the length of one period instance
func (p PeriodKind) Duration() time.Duration {
	switch p {
	case PeriodHourly:
		return time.Hour
	case PeriodWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Baseline is the statistical summary of how often an error type normally
// occurs per period
type Baseline struct {
	ErrorType    string     `json:"error_type"`
	Platform     string     `json:"platform"`
	PeriodType   PeriodKind `json:"period_type"`
	PeriodStart  time.Time  `json:"period_start"`
	PeriodEnd    time.Time  `json:"period_end"`
	Count        int        `json:"count"`
	Mean         float64    `json:"mean"`
	StdDev       float64    `json:"std_dev"`
	Percentile95 float64    `json:"percentile_95"`
	Percentile99 float64    `json:"percentile_99"`
	SampleSize   int        `json:"sample_size"`
}

// AnomalyLevel tiers how far a live count sits above its baseline
type AnomalyLevel string

const (
	AnomalyNone     AnomalyLevel = "none"
	AnomalyElevated AnomalyLevel = "elevated"
	AnomalyHigh     AnomalyLevel = "high"
	AnomalyCritical AnomalyLevel = "critical"
)

// DefaultSensitivity is the number of standard deviations above the mean at
// which a count starts to register as anomalous
const DefaultSensitivity = 2.0

// ComputeBaseline derives mean, population std-dev and interpolated p95/p99
// over samples, one count per historical period instance.
func ComputeBaseline(errorType, platform string, periodType PeriodKind, samples []int) Baseline {
	now := time.Now()
	b := Baseline{
		ErrorType:   errorType,
		Platform:    platform,
		PeriodType:  periodType,
		PeriodStart: now.Add(-time.Duration(len(samples)) * periodType.Duration()),
		PeriodEnd:   now,
		SampleSize:  len(samples),
	}
	if len(samples) == 0 {
		return b
	}

	total := 0
	for _, s := range samples {
		total += s
	}
	b.Count = total
	b.Mean = float64(total) / float64(len(samples))

	var sumSq float64
	for _, s := range samples {
		d := float64(s) - b.Mean
		sumSq += d * d
	}
	b.StdDev = math.Sqrt(sumSq / float64(len(samples)))

	sorted := make([]float64, len(samples))
	for i, s := range samples {
		sorted[i] = float64(s)
	}
	sort.Float64s(sorted)
	b.Percentile95 = percentile(sorted, 0.95)
	b.Percentile99 = percentile(sorted, 0.99)

	return b
}

// percentile interpolates linearly between the two sorted samples straddling
// the requested rank
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// CheckAnomaly evaluates a live count against its baseline. The returned
// threshold is the count at which the elevated tier begins. A zero std-dev
// baseline cannot support a determination and always reports none.
func CheckAnomaly(b Baseline, currentCount int, sensitivity float64) (level AnomalyLevel, thresholdValue float64, stdDevsAbove float64) {
	if sensitivity <= 0 {
		sensitivity = DefaultSensitivity
	}
	thresholdValue = b.Mean + sensitivity*b.StdDev

	current := float64(currentCount)
	if current <= b.Mean {
		return AnomalyNone, thresholdValue, 0
	}
	if b.StdDev == 0 {
		return AnomalyNone, thresholdValue, 0
	}

	stdDevsAbove = (current - b.Mean) / b.StdDev
	switch {
	case stdDevsAbove >= sensitivity+2:
		level = AnomalyCritical
	case stdDevsAbove >= sensitivity+1:
		level = AnomalyHigh
	case stdDevsAbove >= sensitivity:
		level = AnomalyElevated
	default:
		level = AnomalyNone
	}
	return level, thresholdValue, stdDevsAbove
}
