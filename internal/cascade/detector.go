// Package cascade detects and scores causal parent→child relationships
// between error types based on temporal adjacency of their occurrences.
package cascade

import (
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/database"
)

// DefaultWindow is the trailing/leading adjacency window around an
// occurrence within which another issue counts as a cascade candidate
const DefaultWindow = 5 * time.Minute

// DefaultMinProbability filters CascadesFor results
const DefaultMinProbability = 0.5

// Detector finds temporal adjacency between occurrences of different issues
// and maintains CascadePattern edges.
type Detector struct {
	db             *gorm.DB
	window         time.Duration
	minProbability float64
}

// NewDetector creates a cascade detector with the given adjacency window
// and the minimum probability used when a query passes none
func NewDetector(db *gorm.DB, window time.Duration, minProbability float64) *Detector {
	if window <= 0 {
		window = DefaultWindow
	}
	if minProbability <= 0 {
		minProbability = DefaultMinProbability
	}
	return &Detector{db: db, window: window, minProbability: minProbability}
}

// Related holds the parent and child cascade edges of one issue
type Related struct {
	Parents  []database.CascadePattern `json:"parents"`
	Children []database.CascadePattern `json:"children"`
}

// DetectForOccurrence scans the adjacency windows around a newly recorded
// occurrence and upserts cascade edges for every distinct neighbor issue.
// Occurrences of other issues before the event make those issues parents;
// occurrences after make them children. Returns the number of edges touched.
func (d *Detector) DetectForOccurrence(issueID uint, occurredAt time.Time) (int, error) {
	touched := 0

	// Earlier neighbors: neighbor -> this issue
	before, err := d.neighbors(issueID, occurredAt.Add(-d.window), occurredAt, true)
	if err != nil {
		return 0, err
	}
	for neighborID, neighborAt := range before {
		delay := occurredAt.Sub(neighborAt).Seconds()
		if err := d.upsertEdge(neighborID, issueID, delay, occurredAt); err != nil {
			return touched, err
		}
		touched++
	}

	// Later neighbors: this issue -> neighbor
	after, err := d.neighbors(issueID, occurredAt, occurredAt.Add(d.window), false)
	if err != nil {
		return touched, err
	}
	for neighborID, neighborAt := range after {
		delay := neighborAt.Sub(occurredAt).Seconds()
		if err := d.upsertEdge(issueID, neighborID, delay, occurredAt); err != nil {
			return touched, err
		}
		touched++
	}

	return touched, nil
}

// neighbors returns, per distinct other issue, the occurrence timestamp
// closest to the event being scanned: the latest one in a trailing window
// (latest=true), the earliest one in a leading window. The closest
// occurrence is the most plausible causal link, so delays are measured
// against it rather than the far edge of the window.
func (d *Detector) neighbors(issueID uint, from, to time.Time, latest bool) (map[uint]time.Time, error) {
	var occurrences []database.Occurrence
	err := d.db.Where("issue_id != ? AND occurred_at >= ? AND occurred_at < ?",
		issueID, from, to).
		Order("occurred_at ASC").
		Find(&occurrences).Error
	if err != nil {
		return nil, err
	}

	result := make(map[uint]time.Time)
	for _, occ := range occurrences {
		if _, ok := result[occ.IssueID]; !ok || latest {
			result[occ.IssueID] = occ.OccurredAt
		}
	}
	return result, nil
}

// upsertEdge creates the (parent, child) edge on first detection or updates
// it incrementally on repeats: frequency += 1, avg delay via running mean,
// probability recomputed from the parent's total occurrence count.
func (d *Detector) upsertEdge(parentID, childID uint, delaySeconds float64, detectedAt time.Time) error {
	if parentID == childID {
		return nil
	}

	return d.db.Transaction(func(tx *gorm.DB) error {
		var edge database.CascadePattern
		err := tx.Where("parent_issue_id = ? AND child_issue_id = ?",
			parentID, childID).First(&edge).Error

		if err == gorm.ErrRecordNotFound {
			edge = database.CascadePattern{
				ParentIssueID:   parentID,
				ChildIssueID:    childID,
				Frequency:       1,
				AvgDelaySeconds: delaySeconds,
				LastDetectedAt:  detectedAt,
			}
			edge.CascadeProbability = probability(tx, parentID, edge.Frequency)
			return tx.Create(&edge).Error
		}
		if err != nil {
			return err
		}

		edge.Frequency++
		edge.AvgDelaySeconds = (edge.AvgDelaySeconds*float64(edge.Frequency-1) + delaySeconds) / float64(edge.Frequency)
		edge.CascadeProbability = probability(tx, parentID, edge.Frequency)
		edge.LastDetectedAt = detectedAt
		return tx.Save(&edge).Error
	})
}

// probability is frequency over the parent's total occurrence count,
// clamped to [0,1] and rounded to 3 decimals
func probability(tx *gorm.DB, parentID uint, frequency int) float64 {
	var parent database.Issue
	if err := tx.Select("occurrence_count").First(&parent, parentID).Error; err != nil {
		return 0
	}
	if parent.OccurrenceCount <= 0 {
		return 0
	}
	p := float64(frequency) / float64(parent.OccurrenceCount)
	if p > 1 {
		p = 1
	}
	return math.Round(p*1000) / 1000
}

// CascadesFor returns the parent and child edges of an issue, both filtered
// by the minimum probability and sorted by probability descending. A
// non-positive minProbability falls back to the detector's configured one.
func (d *Detector) CascadesFor(issueID uint, minProbability float64) (*Related, error) {
	if minProbability <= 0 {
		minProbability = d.minProbability
	}

	related := &Related{
		Parents:  []database.CascadePattern{},
		Children: []database.CascadePattern{},
	}

	err := d.db.Where("child_issue_id = ? AND cascade_probability >= ?",
		issueID, minProbability).
		Order("cascade_probability DESC").
		Find(&related.Parents).Error
	if err != nil {
		return nil, err
	}

	err = d.db.Where("parent_issue_id = ? AND cascade_probability >= ?",
		issueID, minProbability).
		Order("cascade_probability DESC").
		Find(&related.Children).Error
	if err != nil {
		return nil, err
	}

	return related, nil
}

// StrongCascades returns only edges that qualify as genuine causal signals
// (probability >= 0.7 and frequency >= 3)
func (d *Detector) StrongCascades() ([]database.CascadePattern, error) {
	var edges []database.CascadePattern
	err := d.db.Where("cascade_probability >= ? AND frequency >= ?", 0.7, 3).
		Order("cascade_probability DESC").
		Find(&edges).Error
	return edges, err
}
