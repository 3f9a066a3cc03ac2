package database

import (
	"time"

	"gorm.io/gorm"
)

// FindDuplicateIssue looks for the most recently seen unresolved issue with
// the given fingerprint whose last occurrence falls inside the reopen window.
// Returns gorm.ErrRecordNotFound when no issue qualifies.
func FindDuplicateIssue(db *gorm.DB, fingerprint string, window time.Duration) (*Issue, error) {
	cutoff := time.Now().Add(-window)
	var issue Issue
	err := db.Where("fingerprint = ? AND resolved = ? AND last_seen_at >= ?",
		fingerprint, false, cutoff).
		Order("last_seen_at DESC").
		First(&issue).Error
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// CloseStaleIssues auto-resolves open issues with the fingerprint whose
// last occurrence fell out of the reopen window. The open-fingerprint
// unique index allows only one unresolved issue per fingerprint, so a
// stale row must be closed before a fresh issue can take its place.
func CloseStaleIssues(db *gorm.DB, fingerprint string, window time.Duration) error {
	cutoff := time.Now().Add(-window)
	now := time.Now()
	return db.Model(&Issue{}).
		Where("fingerprint = ? AND resolved = ? AND last_seen_at < ?", fingerprint, false, cutoff).
		Updates(map[string]interface{}{
			"resolved":           true,
			"status":             IssueStatusResolved,
			"resolved_at":        now,
			"resolution_comment": "Auto-closed: no occurrences within the reopen window",
		}).Error
}

// IncrementIssue bumps the occurrence counter and refreshes last_seen_at in
// a single UPDATE so concurrent reporters do not lose increments.
func IncrementIssue(db *gorm.DB, issueID uint, seenAt time.Time) error {
	return db.Model(&Issue{}).Where("id = ?", issueID).Updates(map[string]interface{}{
		"occurrence_count": gorm.Expr("occurrence_count + 1"),
		"last_seen_at":     seenAt,
	}).Error
}

// DeleteIssue removes an issue together with its occurrences and any cascade
// edges that reference it. Cascade edges are weak references, so endpoint
// deletion must clean them up rather than leave orphans.
func DeleteIssue(db *gorm.DB, issueID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("issue_id = ?", issueID).Delete(&Occurrence{}).Error; err != nil {
			return err
		}
		if err := tx.Where("parent_issue_id = ? OR child_issue_id = ?",
			issueID, issueID).Delete(&CascadePattern{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&Issue{}, issueID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// CountOccurrencesByPeriod returns per-period occurrence counts for an
// (error_type, platform) pair going back the given number of periods.
// Periods with no occurrences are included as zeros so baselines reflect
// quiet stretches, not just busy ones.
func CountOccurrencesByPeriod(db *gorm.DB, errorType, platform string, period time.Duration, periods int) ([]int, error) {
	end := time.Now().Truncate(period).Add(period)
	start := end.Add(-time.Duration(periods) * period)

	var occurrences []Occurrence
	err := db.Select("occurred_at").
		Where("error_type = ? AND platform = ? AND occurred_at >= ? AND occurred_at < ?",
			errorType, platform, start, end).
		Find(&occurrences).Error
	if err != nil {
		return nil, err
	}

	counts := make([]int, periods)
	for _, occ := range occurrences {
		idx := int(occ.OccurredAt.Sub(start) / period)
		if idx >= 0 && idx < periods {
			counts[idx]++
		}
	}
	return counts, nil
}

// UpsertBaseline creates or replaces the baseline for an (error_type,
// platform, baseline_type) key. Idempotent so a retried job run is safe.
func UpsertBaseline(db *gorm.DB, baseline *ErrorBaseline) error {
	var existing ErrorBaseline
	err := db.Where("error_type = ? AND platform = ? AND baseline_type = ?",
		baseline.ErrorType, baseline.Platform, baseline.BaselineType).
		First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return db.Create(baseline).Error
	}
	if err != nil {
		return err
	}
	baseline.ID = existing.ID
	baseline.CreatedAt = existing.CreatedAt
	return db.Save(baseline).Error
}

// GetBaseline fetches the baseline for an (error_type, platform,
// baseline_type) key. Returns gorm.ErrRecordNotFound when none exists.
func GetBaseline(db *gorm.DB, errorType, platform string, baselineType BaselineType) (*ErrorBaseline, error) {
	var baseline ErrorBaseline
	err := db.Where("error_type = ? AND platform = ? AND baseline_type = ?",
		errorType, platform, baselineType).First(&baseline).Error
	if err != nil {
		return nil, err
	}
	return &baseline, nil
}
