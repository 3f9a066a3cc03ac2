package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/baseline"
	"github.com/errdeck/errdeck/internal/database"
	"github.com/errdeck/errdeck/internal/events"
)

// BaselineJob periodically recomputes statistical baselines for every
// (error type, platform) pair with recent occurrences and checks live
// counts against them for anomalies.
type BaselineJob struct {
	db       *gorm.DB
	cooldown *baseline.AlertCooldown
	bus      *events.Bus
}

// NewBaselineJob creates a new baseline job
func NewBaselineJob(db *gorm.DB, cooldown *baseline.AlertCooldown, bus *events.Bus) *BaselineJob {
	return &BaselineJob{db: db, cooldown: cooldown, bus: bus}
}

type seriesKey struct {
	ErrorType string
	Platform  string
}

// activePairs lists the distinct (error_type, platform) pairs with
// occurrences inside the window
func (j *BaselineJob) activePairs(since time.Time) ([]seriesKey, error) {
	var pairs []seriesKey
	err := j.db.Model(&database.Occurrence{}).
		Select("DISTINCT error_type, platform").
		Where("occurred_at >= ?", since).
		Scan(&pairs).Error
	return pairs, err
}

// Run executes one iteration: recompute and upsert hourly and daily
// baselines, then evaluate the current period for anomalies. Returns the
// number of baselines written. Upserts keyed on (type, platform, period)
// make a retried run safe.
func (j *BaselineJob) Run() (int, error) {
	settings, err := database.GetOrCreateTrackerSettings(j.db)
	if err != nil {
		return 0, err
	}
	if !settings.Enabled {
		log.Println("Tracker is disabled, skipping baseline computation")
		return 0, nil
	}

	windowDays := settings.BaselineWindowDays
	since := time.Now().AddDate(0, 0, -windowDays)

	pairs, err := j.activePairs(since)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, pair := range pairs {
		for _, kind := range []baseline.PeriodKind{baseline.PeriodHourly, baseline.PeriodDaily} {
			b, err := j.computeFor(pair, kind, windowDays)
			if err != nil {
				log.Printf("Failed to compute %s baseline for %s/%s: %v",
					kind, pair.ErrorType, pair.Platform, err)
				continue
			}
			if err := database.UpsertBaseline(j.db, toRecord(b)); err != nil {
				log.Printf("Failed to store %s baseline for %s/%s: %v",
					kind, pair.ErrorType, pair.Platform, err)
				continue
			}
			written++
		}

		if err := j.checkAnomaly(pair, settings); err != nil {
			log.Printf("Anomaly check failed for %s/%s: %v", pair.ErrorType, pair.Platform, err)
		}
	}

	swept := j.cooldown.Sweep()
	if swept > 0 {
		log.Printf("Swept %d stale alert cooldown entries", swept)
	}

	return written, nil
}

func (j *BaselineJob) computeFor(pair seriesKey, kind baseline.PeriodKind, windowDays int) (baseline.Baseline, error) {
	period := kind.Duration()
	periods := int((time.Duration(windowDays) * 24 * time.Hour) / period)
	if periods < 1 {
		periods = 1
	}

	samples, err := database.CountOccurrencesByPeriod(j.db, pair.ErrorType, pair.Platform, period, periods)
	if err != nil {
		return baseline.Baseline{}, err
	}
	return baseline.ComputeBaseline(pair.ErrorType, pair.Platform, kind, samples), nil
}

// checkAnomaly compares the current day's count against the daily baseline
// and, when the cooldown allows, publishes an anomaly signal
func (j *BaselineJob) checkAnomaly(pair seriesKey, settings *database.TrackerSettings) error {
	record, err := database.GetBaseline(j.db, pair.ErrorType, pair.Platform, database.BaselineDaily)
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	dayStart := time.Now().Truncate(24 * time.Hour)
	var current int64
	if err := j.db.Model(&database.Occurrence{}).
		Where("error_type = ? AND platform = ? AND occurred_at >= ?",
			pair.ErrorType, pair.Platform, dayStart).
		Count(&current).Error; err != nil {
		return err
	}

	level, threshold, stdDevs := baseline.CheckAnomaly(fromRecord(record), int(current), settings.AnomalySensitivity)
	if level == baseline.AnomalyNone {
		return nil
	}

	if !j.cooldown.ShouldAlert(pair.ErrorType, pair.Platform, settings.AlertCooldownMinutes) {
		return nil
	}
	j.cooldown.RecordAlert(pair.ErrorType, pair.Platform)

	log.Printf("Anomaly detected for %s/%s: level=%s current=%d threshold=%.1f stddevs=%.2f",
		pair.ErrorType, pair.Platform, level, current, threshold, stdDevs)

	j.bus.Publish(events.EventAnomalyDetected, events.Payload{
		Extra: map[string]interface{}{
			"error_type":     pair.ErrorType,
			"platform":       pair.Platform,
			"level":          string(level),
			"current_count":  int(current),
			"threshold":      threshold,
			"std_devs_above": stdDevs,
		},
	})
	return nil
}

func toRecord(b baseline.Baseline) *database.ErrorBaseline {
	return &database.ErrorBaseline{
		ErrorType:    b.ErrorType,
		Platform:     b.Platform,
		BaselineType: database.BaselineType(b.PeriodType),
		PeriodStart:  b.PeriodStart,
		PeriodEnd:    b.PeriodEnd,
		Count:        b.Count,
		Mean:         b.Mean,
		StdDev:       b.StdDev,
		Percentile95: b.Percentile95,
		Percentile99: b.Percentile99,
		SampleSize:   b.SampleSize,
	}
}

func fromRecord(r *database.ErrorBaseline) baseline.Baseline {
	return baseline.Baseline{
		ErrorType:    r.ErrorType,
		Platform:     r.Platform,
		PeriodType:   baseline.PeriodKind(r.BaselineType),
		PeriodStart:  r.PeriodStart,
		PeriodEnd:    r.PeriodEnd,
		Count:        r.Count,
		Mean:         r.Mean,
		StdDev:       r.StdDev,
		Percentile95: r.Percentile95,
		Percentile99: r.Percentile99,
		SampleSize:   r.SampleSize,
	}
}

// Start begins periodic baseline computation on a fixed interval
func (j *BaselineJob) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			written, err := j.Run()
			if err != nil {
				log.Printf("Baseline job error: %v", err)
			} else if written > 0 {
				log.Printf("Baseline job: wrote %d baselines", written)
			}
		case <-stop:
			log.Println("Baseline job stopped")
			return
		}
	}
}
