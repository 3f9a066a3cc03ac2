package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/cascade"
	"github.com/errdeck/errdeck/internal/database"
)

// CascadeJob periodically scans recent occurrences for temporal adjacency
// between different issues and maintains cascade edges.
type CascadeJob struct {
	db       *gorm.DB
	detector *cascade.Detector

	// lastScanned marks the upper bound of the previous run so occurrences
	// are not re-counted into edge frequencies on the next one
	lastScanned time.Time
}

// NewCascadeJob creates a new cascade job
func NewCascadeJob(db *gorm.DB, detector *cascade.Detector) *CascadeJob {
	return &CascadeJob{
		db:          db,
		detector:    detector,
		lastScanned: time.Now(),
	}
}

// Run processes occurrences recorded since the previous run, feeding each
// through the adjacency detector. Returns the number of edges touched.
func (j *CascadeJob) Run() (int, error) {
	settings, err := database.GetOrCreateTrackerSettings(j.db)
	if err != nil {
		return 0, err
	}
	if !settings.Enabled {
		return 0, nil
	}

	// Hold back one window so the leading-window scan of the newest
	// occurrences sees complete data.
	window := time.Duration(settings.CascadeWindowSeconds) * time.Second
	upper := time.Now().Add(-window)
	if !upper.After(j.lastScanned) {
		return 0, nil
	}

	var occurrences []database.Occurrence
	err = j.db.Where("occurred_at >= ? AND occurred_at < ?", j.lastScanned, upper).
		Order("occurred_at ASC").
		Find(&occurrences).Error
	if err != nil {
		return 0, err
	}

	touched := 0
	for _, occ := range occurrences {
		n, err := j.detector.DetectForOccurrence(occ.IssueID, occ.OccurredAt)
		if err != nil {
			log.Printf("Cascade detection failed for occurrence %d: %v", occ.ID, err)
			continue
		}
		touched += n
	}

	j.lastScanned = upper
	return touched, nil
}

// Start begins periodic cascade scanning on a fixed interval
func (j *CascadeJob) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			touched, err := j.Run()
			if err != nil {
				log.Printf("Cascade job error: %v", err)
			} else if touched > 0 {
				log.Printf("Cascade job: touched %d edges", touched)
			}
		case <-stop:
			log.Println("Cascade job stopped")
			return
		}
	}
}
