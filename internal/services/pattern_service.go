package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/database"
	"github.com/errdeck/errdeck/internal/pattern"
)

// PatternService loads occurrence timestamps and runs temporal analysis on
// them: cyclical time-of-day/day-of-week classification and burst grouping.
type PatternService struct {
	db *gorm.DB
}

// NewPatternService creates a new pattern service
func NewPatternService(db *gorm.DB) *PatternService {
	return &PatternService{db: db}
}

func (s *PatternService) timestampsForSeries(errorType, platform string, days int) ([]time.Time, error) {
	since := time.Now().AddDate(0, 0, -days)
	var occurrences []database.Occurrence
	err := s.db.Select("occurred_at").
		Where("error_type = ? AND platform = ? AND occurred_at >= ?", errorType, platform, since).
		Order("occurred_at ASC").
		Find(&occurrences).Error
	if err != nil {
		return nil, err
	}

	timestamps := make([]time.Time, len(occurrences))
	for i, occ := range occurrences {
		timestamps[i] = occ.OccurredAt
	}
	return timestamps, nil
}

// CyclicalFor classifies the timing pattern of an (error type, platform)
// series over a trailing day window
func (s *PatternService) CyclicalFor(errorType, platform string, days int) (pattern.Cyclical, error) {
	timestamps, err := s.timestampsForSeries(errorType, platform, days)
	if err != nil {
		return pattern.Cyclical{}, err
	}
	return pattern.DetectCyclical(timestamps), nil
}

// BurstsFor finds burst clusters in an (error type, platform) series over a
// trailing day window
func (s *PatternService) BurstsFor(errorType, platform string, days int, maxGap time.Duration, minEvents int) ([]pattern.Burst, error) {
	timestamps, err := s.timestampsForSeries(errorType, platform, days)
	if err != nil {
		return nil, err
	}
	return pattern.DetectBursts(timestamps, maxGap, minEvents), nil
}

// BurstsForIssue finds burst clusters among a single issue's occurrences
func (s *PatternService) BurstsForIssue(issueID uint, days int, maxGap time.Duration, minEvents int) ([]pattern.Burst, error) {
	since := time.Now().AddDate(0, 0, -days)
	var occurrences []database.Occurrence
	err := s.db.Select("occurred_at").
		Where("issue_id = ? AND occurred_at >= ?", issueID, since).
		Order("occurred_at ASC").
		Find(&occurrences).Error
	if err != nil {
		return nil, err
	}

	timestamps := make([]time.Time, len(occurrences))
	for i, occ := range occurrences {
		timestamps[i] = occ.OccurredAt
	}
	return pattern.DetectBursts(timestamps, maxGap, minEvents), nil
}
