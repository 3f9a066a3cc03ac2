package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/database"
	"github.com/errdeck/errdeck/internal/pattern"
	"github.com/errdeck/errdeck/internal/services"
)

// PatternJob periodically runs temporal analysis over active error series
// and logs notable findings: strongly cyclical series and recent bursts.
type PatternJob struct {
	db      *gorm.DB
	service *services.PatternService
}

// NewPatternJob creates a new pattern job
func NewPatternJob(db *gorm.DB, service *services.PatternService) *PatternJob {
	return &PatternJob{db: db, service: service}
}

// Run analyzes every (error type, platform) pair active inside the pattern
// window. Returns the number of series analyzed. Pure read-side analysis,
// so a retried run is trivially safe.
func (j *PatternJob) Run() (int, error) {
	settings, err := database.GetOrCreateTrackerSettings(j.db)
	if err != nil {
		return 0, err
	}
	if !settings.Enabled {
		return 0, nil
	}

	since := time.Now().AddDate(0, 0, -settings.PatternWindowDays)
	var pairs []struct {
		ErrorType string
		Platform  string
	}
	err = j.db.Model(&database.Occurrence{}).
		Select("DISTINCT error_type, platform").
		Where("occurred_at >= ?", since).
		Scan(&pairs).Error
	if err != nil {
		return 0, err
	}

	maxGap := time.Duration(settings.BurstGapSeconds) * time.Second
	analyzed := 0
	for _, pair := range pairs {
		cyclical, err := j.service.CyclicalFor(pair.ErrorType, pair.Platform, settings.PatternWindowDays)
		if err != nil {
			log.Printf("Cyclical analysis failed for %s/%s: %v", pair.ErrorType, pair.Platform, err)
			continue
		}
		if cyclical.Kind != pattern.KindUniform {
			log.Printf("Cyclical pattern for %s/%s: %s (strength %.2f, %d samples)",
				pair.ErrorType, pair.Platform, cyclical.Kind, cyclical.Strength, cyclical.SampleSize)
		}

		bursts, err := j.service.BurstsFor(pair.ErrorType, pair.Platform,
			settings.PatternWindowDays, maxGap, settings.BurstMinEvents)
		if err != nil {
			log.Printf("Burst analysis failed for %s/%s: %v", pair.ErrorType, pair.Platform, err)
			continue
		}
		for _, b := range bursts {
			if b.Intensity == pattern.IntensityHigh {
				log.Printf("High-intensity burst for %s/%s: %d events in %.0fs starting %s",
					pair.ErrorType, pair.Platform, b.ErrorCount, b.DurationSeconds,
					b.StartTime.Format(time.RFC3339))
			}
		}
		analyzed++
	}

	return analyzed, nil
}

// Start begins periodic pattern analysis on a fixed interval
func (j *PatternJob) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			analyzed, err := j.Run()
			if err != nil {
				log.Printf("Pattern job error: %v", err)
			} else if analyzed > 0 {
				log.Printf("Pattern job: analyzed %d series", analyzed)
			}
		case <-stop:
			log.Println("Pattern job stopped")
			return
		}
	}
}
