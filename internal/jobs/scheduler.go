package jobs

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/errdeck/errdeck/internal/database"
)

// Runnable is one iteration of a periodic batch job
type Runnable interface {
	Run() (int, error)
}

// Scheduler drives the periodic analytics jobs off a single cron instance,
// with intervals taken from tracker settings.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates an empty scheduler
func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Register adds a named job on an every-N-minutes schedule
func (s *Scheduler) Register(name string, intervalMinutes int, job Runnable) error {
	if intervalMinutes <= 0 {
		return fmt.Errorf("invalid interval for job %s: %d minutes", name, intervalMinutes)
	}
	spec := fmt.Sprintf("@every %dm", intervalMinutes)
	_, err := s.cron.AddFunc(spec, func() {
		n, err := job.Run()
		if err != nil {
			log.Printf("Job %s failed: %v", name, err)
		} else if n > 0 {
			log.Printf("Job %s: processed %d items", name, n)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}
	log.Printf("Scheduled job %s every %d minutes", name, intervalMinutes)
	return nil
}

// RegisterAll wires the three analytics jobs at the intervals configured in
// tracker settings
func (s *Scheduler) RegisterAll(settings *database.TrackerSettings, baselineJob, cascadeJob, patternJob Runnable) error {
	if err := s.Register("baseline", settings.BaselineIntervalMinutes, baselineJob); err != nil {
		return err
	}
	if err := s.Register("cascade", settings.CascadeIntervalMinutes, cascadeJob); err != nil {
		return err
	}
	if err := s.Register("pattern", settings.PatternIntervalMinutes, patternJob); err != nil {
		return err
	}
	return nil
}

// Start launches the cron loop in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling; running jobs finish their current iteration
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
