package services

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/database"
)

// CorrelationService serves read-only aggregations over the issue and
// occurrence store. All queries take a trailing day-count window; sparse or
// missing data yields empty results, never errors, so dashboards always
// render.
type CorrelationService struct {
	db *gorm.DB
}

// NewCorrelationService creates a new correlation service
func NewCorrelationService(db *gorm.DB) *CorrelationService {
	return &CorrelationService{db: db}
}

func windowStart(days int) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, fmt.Errorf("window must be a positive day count, got %d", days)
	}
	return time.Now().AddDate(0, 0, -days), nil
}

// VersionStats aggregates issues and occurrences per app version
type VersionStats struct {
	AppVersion      string `json:"app_version"`
	IssueCount      int    `json:"issue_count"`
	OccurrenceCount int    `json:"occurrence_count"`
}

// ErrorsByVersion groups error volume by app version over the window
func (s *CorrelationService) ErrorsByVersion(days int) ([]VersionStats, error) {
	since, err := windowStart(days)
	if err != nil {
		return nil, err
	}

	var stats []VersionStats
	err = s.db.Model(&database.Issue{}).
		Select("app_version, COUNT(*) AS issue_count, SUM(occurrence_count) AS occurrence_count").
		Where("last_seen_at >= ? AND app_version != ''", since).
		Group("app_version").
		Order("occurrence_count DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RevisionStats aggregates issues and occurrences per git revision
type RevisionStats struct {
	RevisionID      string `json:"revision_id"`
	IssueCount      int    `json:"issue_count"`
	OccurrenceCount int    `json:"occurrence_count"`
}

// ErrorsByRevision groups error volume by git SHA over the window
func (s *CorrelationService) ErrorsByRevision(days int) ([]RevisionStats, error) {
	since, err := windowStart(days)
	if err != nil {
		return nil, err
	}

	var stats []RevisionStats
	err = s.db.Model(&database.Issue{}).
		Select("revision_id, COUNT(*) AS issue_count, SUM(occurrence_count) AS occurrence_count").
		Where("last_seen_at >= ? AND revision_id != ''", since).
		Group("revision_id").
		Order("occurrence_count DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ProblematicReleases flags versions whose occurrence volume exceeds the
// best-behaved release's by more than the relative threshold (e.g. 2.0 means
// at least double the baseline release's volume).
func (s *CorrelationService) ProblematicReleases(days int, threshold float64) ([]VersionStats, error) {
	stats, err := s.ErrorsByVersion(days)
	if err != nil {
		return nil, err
	}
	if len(stats) < 2 {
		return []VersionStats{}, nil
	}
	if threshold <= 0 {
		threshold = 2.0
	}

	baseline := stats[0].OccurrenceCount
	for _, st := range stats {
		if st.OccurrenceCount < baseline {
			baseline = st.OccurrenceCount
		}
	}
	if baseline == 0 {
		baseline = 1
	}

	var problematic []VersionStats
	for _, st := range stats {
		if float64(st.OccurrenceCount) > float64(baseline)*threshold {
			problematic = append(problematic, st)
		}
	}
	if problematic == nil {
		problematic = []VersionStats{}
	}
	return problematic, nil
}

// PlatformStats aggregates error volume per platform
type PlatformStats struct {
	Platform        string `json:"platform"`
	IssueCount      int    `json:"issue_count"`
	OccurrenceCount int    `json:"occurrence_count"`
}

// ErrorsByPlatform groups error volume by platform over the window
func (s *CorrelationService) ErrorsByPlatform(days int) ([]PlatformStats, error) {
	since, err := windowStart(days)
	if err != nil {
		return nil, err
	}

	var stats []PlatformStats
	err = s.db.Model(&database.Issue{}).
		Select("platform, COUNT(*) AS issue_count, SUM(occurrence_count) AS occurrence_count").
		Where("last_seen_at >= ?", since).
		Group("platform").
		Order("occurrence_count DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// SeverityCount is one bucket of the severity distribution
type SeverityCount struct {
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

// SeverityDistribution counts issues per severity over the window
func (s *CorrelationService) SeverityDistribution(days int) ([]SeverityCount, error) {
	since, err := windowStart(days)
	if err != nil {
		return nil, err
	}

	var counts []SeverityCount
	err = s.db.Model(&database.Issue{}).
		Select("severity, COUNT(*) AS count").
		Where("last_seen_at >= ?", since).
		Group("severity").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// ResolutionStats summarizes how quickly issues get resolved
type ResolutionStats struct {
	ResolvedCount   int     `json:"resolved_count"`
	MeanSeconds     float64 `json:"mean_seconds"`
	FastestSeconds  float64 `json:"fastest_seconds"`
	SlowestSeconds  float64 `json:"slowest_seconds"`
	ResolutionRate  float64 `json:"resolution_rate"`
	UnresolvedCount int     `json:"unresolved_count"`
}

// ResolutionTimes computes the distribution of first_seen_at to resolved_at
// over issues resolved inside the window
func (s *CorrelationService) ResolutionTimes(days int) (*ResolutionStats, error) {
	since, err := windowStart(days)
	if err != nil {
		return nil, err
	}

	var resolved []database.Issue
	if err := s.db.Where("resolved = ? AND resolved_at >= ?", true, since).
		Find(&resolved).Error; err != nil {
		return nil, err
	}

	var unresolvedCount int64
	if err := s.db.Model(&database.Issue{}).
		Where("resolved = ? AND last_seen_at >= ?", false, since).
		Count(&unresolvedCount).Error; err != nil {
		return nil, err
	}

	stats := &ResolutionStats{
		ResolvedCount:   len(resolved),
		UnresolvedCount: int(unresolvedCount),
	}
	if len(resolved) == 0 {
		return stats, nil
	}

	var total float64
	measured := 0
	for _, issue := range resolved {
		if issue.ResolvedAt == nil {
			continue
		}
		seconds := issue.ResolvedAt.Sub(issue.FirstSeenAt).Seconds()
		total += seconds
		if measured == 0 || seconds < stats.FastestSeconds {
			stats.FastestSeconds = seconds
		}
		if seconds > stats.SlowestSeconds {
			stats.SlowestSeconds = seconds
		}
		measured++
	}
	if measured > 0 {
		stats.MeanSeconds = total / float64(measured)
	}

	if denom := stats.ResolvedCount + stats.UnresolvedCount; denom > 0 {
		stats.ResolutionRate = float64(stats.ResolvedCount) / float64(denom)
	}
	return stats, nil
}

// TypeCount is one entry of the top error types list
type TypeCount struct {
	ErrorType       string `json:"error_type"`
	OccurrenceCount int    `json:"occurrence_count"`
}

// TopErrorTypes returns the n most frequent error types over the window
func (s *CorrelationService) TopErrorTypes(days, n int) ([]TypeCount, error) {
	since, err := windowStart(days)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		n = 10
	}

	var counts []TypeCount
	err = s.db.Model(&database.Occurrence{}).
		Select("error_type, COUNT(*) AS occurrence_count").
		Where("occurred_at >= ?", since).
		Group("error_type").
		Order("occurrence_count DESC").
		Limit(n).
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// StabilityScore composites error rate and resolution rate into a [0,100]
// health figure: fewer occurrences per day and a higher resolution rate
// both push the score up.
func (s *CorrelationService) StabilityScore(days int) (float64, error) {
	since, err := windowStart(days)
	if err != nil {
		return 0, err
	}

	var occurrenceCount int64
	if err := s.db.Model(&database.Occurrence{}).
		Where("occurred_at >= ?", since).
		Count(&occurrenceCount).Error; err != nil {
		return 0, err
	}

	resolution, err := s.ResolutionTimes(days)
	if err != nil {
		return 0, err
	}

	// Error-rate component decays from 50 toward 0 as daily volume grows;
	// 100 occurrences/day halves it.
	perDay := float64(occurrenceCount) / float64(days)
	rateScore := 50.0 * (100.0 / (100.0 + perDay))
	resolutionScore := 50.0 * resolution.ResolutionRate
	if resolution.ResolvedCount+resolution.UnresolvedCount == 0 {
		// No issues at all: full marks for the resolution half
		resolutionScore = 50.0
	}
	return rateScore + resolutionScore, nil
}

// DailyCount is one day of the occurrence trend
type DailyCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// DailyTrend returns per-day occurrence counts over the window
func (s *CorrelationService) DailyTrend(days int) ([]DailyCount, error) {
	since, err := windowStart(days)
	if err != nil {
		return nil, err
	}

	var counts []DailyCount
	err = s.db.Model(&database.Occurrence{}).
		Select("date(occurred_at) AS day, COUNT(*) AS count").
		Where("occurred_at >= ?", since).
		Group("date(occurred_at)").
		Order("day ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

// UserErrorStats counts distinct error types seen by one user
type UserErrorStats struct {
	UserID        string `json:"user_id"`
	DistinctTypes int    `json:"distinct_types"`
	TotalErrors   int    `json:"total_errors"`
}

// MultiErrorUsers returns users who hit at least minTypes distinct error
// types inside the window, worst first
func (s *CorrelationService) MultiErrorUsers(days, minTypes int) ([]UserErrorStats, error) {
	since, err := windowStart(days)
	if err != nil {
		return nil, err
	}
	if minTypes <= 0 {
		minTypes = 2
	}

	var stats []UserErrorStats
	err = s.db.Model(&database.Occurrence{}).
		Select("user_id, COUNT(DISTINCT error_type) AS distinct_types, COUNT(*) AS total_errors").
		Where("occurred_at >= ? AND user_id != ''", since).
		Group("user_id").
		Having("COUNT(DISTINCT error_type) >= ?", minTypes).
		Order("distinct_types DESC").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// CorrelatedPair is a pair of error types whose occurrences cluster in time
type CorrelatedPair struct {
	ErrorTypeA string `json:"error_type_a"`
	ErrorTypeB string `json:"error_type_b"`
	Count      int    `json:"count"`
}

// TimeCorrelatedErrors finds pairs of error types whose occurrences fall
// within the co-occurrence window of each other at least minCount times.
// Reuses the adjacency windowing idea of the cascade detector, but symmetric
// and type-level rather than issue-level.
func (s *CorrelationService) TimeCorrelatedErrors(days int, window time.Duration, minCount int) ([]CorrelatedPair, error) {
	since, err := windowStart(days)
	if err != nil {
		return nil, err
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	if minCount <= 0 {
		minCount = 3
	}

	var occurrences []database.Occurrence
	if err := s.db.Select("error_type, occurred_at").
		Where("occurred_at >= ?", since).
		Order("occurred_at ASC").
		Find(&occurrences).Error; err != nil {
		return nil, err
	}

	// Sliding window over the sorted series: count each unordered type pair
	// once per left endpoint.
	pairCounts := make(map[[2]string]int)
	left := 0
	for i, occ := range occurrences {
		for occ.OccurredAt.Sub(occurrences[left].OccurredAt) > window {
			left++
		}
		seen := make(map[string]bool)
		for j := left; j < i; j++ {
			other := occurrences[j].ErrorType
			if other == occ.ErrorType || seen[other] {
				continue
			}
			seen[other] = true
			key := orderedPair(occ.ErrorType, other)
			pairCounts[key]++
		}
	}

	pairs := make([]CorrelatedPair, 0, len(pairCounts))
	for key, count := range pairCounts {
		if count >= minCount {
			pairs = append(pairs, CorrelatedPair{ErrorTypeA: key[0], ErrorTypeB: key[1], Count: count})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Count > pairs[j].Count })
	return pairs, nil
}

func orderedPair(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}
