package backtrace

import (
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/errdeck/errdeck/internal/database"
)

// Similarity weights. Identical backtrace signatures dominate; a matching
// error type is a medium signal; a shared type stem is weaker; the rest
// comes from message token overlap.
const (
	weightSignature  = 0.4
	weightType       = 0.3
	weightTypePrefix = 0.15
	weightMessage    = 0.3
)

// DefaultCandidateLimit bounds the candidate set so scoring cost stays
// independent of table size. Tunable via tracker settings.
const DefaultCandidateLimit = 100

// ScoredIssue pairs a candidate issue with its similarity score
type ScoredIssue struct {
	Issue database.Issue `json:"issue"`
	Score float64        `json:"score"`
}

// Scorer finds and scores issues similar to a query issue
type Scorer struct {
	db             *gorm.DB
	candidateLimit int
}

// NewScorer creates a similarity scorer
func NewScorer(db *gorm.DB, candidateLimit int) *Scorer {
	if candidateLimit <= 0 {
		candidateLimit = DefaultCandidateLimit
	}
	return &Scorer{db: db, candidateLimit: candidateLimit}
}

// Score computes the pairwise similarity between two issues in [0,1]
func Score(a, b *database.Issue) float64 {
	score := 0.0

	if a.BacktraceSignature != "" && a.BacktraceSignature == b.BacktraceSignature {
		score += weightSignature
	}

	if a.ErrorType == b.ErrorType {
		score += weightType
	} else if sharedTypeStem(a.ErrorType, b.ErrorType) {
		score += weightTypePrefix
	}

	score += weightMessage * messageSimilarity(a.Message, b.Message)

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// FindSimilar returns issues on the same platform scored against the query
// issue, sorted descending, filtered to score >= threshold, truncated to
// limit. The query issue itself is always excluded.
func (s *Scorer) FindSimilar(issue *database.Issue, threshold float64, limit int) ([]ScoredIssue, error) {
	candidates, err := s.candidates(issue)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredIssue, 0, len(candidates))
	for i := range candidates {
		sc := Score(issue, &candidates[i])
		if sc >= threshold {
			scored = append(scored, ScoredIssue{Issue: candidates[i], Score: sc})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// candidates unions three restricted searches (same signature, same type,
// shared type prefix) and caps the total, avoiding a full cross-product scan.
func (s *Scorer) candidates(issue *database.Issue) ([]database.Issue, error) {
	seen := map[uint]bool{issue.ID: true}
	var result []database.Issue

	add := func(batch []database.Issue) {
		for _, c := range batch {
			if seen[c.ID] || len(result) >= s.candidateLimit {
				continue
			}
			seen[c.ID] = true
			result = append(result, c)
		}
	}

	base := func() *gorm.DB {
		return s.db.Where("id != ? AND platform = ?", issue.ID, issue.Platform).
			Limit(s.candidateLimit)
	}

	if issue.BacktraceSignature != "" {
		var batch []database.Issue
		if err := base().Where("backtrace_signature = ?", issue.BacktraceSignature).
			Find(&batch).Error; err != nil {
			return nil, err
		}
		add(batch)
	}

	if len(result) < s.candidateLimit {
		var batch []database.Issue
		if err := base().Where("error_type = ?", issue.ErrorType).
			Find(&batch).Error; err != nil {
			return nil, err
		}
		add(batch)
	}

	if prefix := typeStem(issue.ErrorType); prefix != "" && len(result) < s.candidateLimit {
		var batch []database.Issue
		if err := base().Where("error_type LIKE ?", prefix+"%").
			Find(&batch).Error; err != nil {
			return nil, err
		}
		add(batch)
	}

	return result, nil
}

// typeStem returns the leading portion of an error type name used for
// prefix candidate matching: the namespace for qualified names, otherwise
// the name with a trailing "Error"/"Exception" suffix removed.
func typeStem(errorType string) string {
	if idx := strings.Index(errorType, "::"); idx > 0 {
		return errorType[:idx]
	}
	for _, suffix := range []string{"Error", "Exception"} {
		if strings.HasSuffix(errorType, suffix) && len(errorType) > len(suffix) {
			return strings.TrimSuffix(errorType, suffix)
		}
	}
	return ""
}

func sharedTypeStem(a, b string) bool {
	stemA, stemB := typeStem(a), typeStem(b)
	return stemA != "" && stemA == stemB
}

// messageSimilarity is the token overlap ratio (Jaccard) between two
// lowercased messages.
func messageSimilarity(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}

	setB := make(map[string]bool, len(tokensB))
	intersection := 0
	for _, t := range tokensB {
		if setB[t] {
			continue
		}
		setB[t] = true
		if setA[t] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}
