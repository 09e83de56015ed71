package aggregator

import (
	"sort"
	"strings"

	"github.com/itsbakr/minerva-library/internal/domain"
)

// Heuristic scoring weights. Additive; tuned by hand against manual relevance
// checks on common queries.
const (
	weightOpenAccess    = 60.0
	weightOpenAccessURL = 10.0

	weightRecencyRecent = 30.0
	weightRecencyMid    = 20.0
	weightRecencyOld    = 10.0

	weightDOI = 8.0

	citationDivisor = 10.0
	citationCap     = 20.0

	weightTitleWord          = 12.0
	weightTitlePhrase        = 40.0
	weightTitleCoverageMax   = 20.0
	weightTitleSimilarityMax = 15.0

	weightAbstractWord   = 4.0
	weightAbstractPhrase = 10.0

	penaltyUntitled = 20.0
)

// Default recency tier cutoffs.
const (
	DefaultRecentCutoff = 2023
	DefaultMidCutoff    = 2020
	DefaultOldCutoff    = 2015
)

// stopWords are dropped from the query before lexical matching.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "is": true, "of": true,
	"on": true, "or": true, "the": true, "to": true, "with": true,
}

// RankerConfig configures the recency tiers.
type RankerConfig struct {
	// RecentCutoff is the publication year from which the top recency bonus
	// applies. Defaults to 2023.
	RecentCutoff int

	// MidCutoff is the year from which the middle bonus applies. Defaults
	// to 2020.
	MidCutoff int

	// OldCutoff is the year from which the smallest bonus applies. Defaults
	// to 2015.
	OldCutoff int
}

// applyDefaults sets default values for unset configuration fields.
func (c *RankerConfig) applyDefaults() {
	if c.RecentCutoff == 0 {
		c.RecentCutoff = DefaultRecentCutoff
	}
	if c.MidCutoff == 0 {
		c.MidCutoff = DefaultMidCutoff
	}
	if c.OldCutoff == 0 {
		c.OldCutoff = DefaultOldCutoff
	}
}

// Ranker assigns each record a heuristic relevance score and orders records by
// descending score. Open access availability, recency, citations, and lexical
// query match against title and abstract all contribute.
type Ranker struct {
	config RankerConfig
}

// NewRanker creates a ranker with the given configuration.
func NewRanker(cfg RankerConfig) *Ranker {
	cfg.applyDefaults()
	return &Ranker{config: cfg}
}

// Rank scores every record in place and returns the slice stably sorted by
// descending relevance score. Records with equal scores keep their relative
// order.
func (r *Ranker) Rank(records []domain.Record, query string) []domain.Record {
	normQuery := domain.NormalizeTitle(query)
	queryWords := filterStopWords(strings.Fields(normQuery))

	for i := range records {
		records[i].RelevanceScore = r.score(&records[i], normQuery, queryWords)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].RelevanceScore > records[j].RelevanceScore
	})
	return records
}

// score computes the additive relevance score for one record.
func (r *Ranker) score(rec *domain.Record, normQuery string, queryWords []string) float64 {
	var score float64

	if rec.IsOpenAccess {
		score += weightOpenAccess
		if rec.OpenAccessURL != "" {
			score += weightOpenAccessURL
		}
	}

	switch {
	case rec.PublicationYear >= r.config.RecentCutoff:
		score += weightRecencyRecent
	case rec.PublicationYear >= r.config.MidCutoff:
		score += weightRecencyMid
	case rec.PublicationYear >= r.config.OldCutoff:
		score += weightRecencyOld
	}

	if rec.HasDOI() {
		score += weightDOI
	}

	citation := float64(rec.CitedByCount) / citationDivisor
	if citation > citationCap {
		citation = citationCap
	}
	score += citation

	normTitle := domain.NormalizeTitle(rec.Title)
	if normTitle == "" {
		score -= penaltyUntitled
	} else if len(queryWords) > 0 {
		matched := 0
		for _, w := range queryWords {
			if strings.Contains(normTitle, w) {
				matched++
			}
		}
		score += float64(matched) * weightTitleWord
		score += weightTitleCoverageMax * float64(matched) / float64(len(queryWords))
		if strings.Contains(normTitle, normQuery) {
			score += weightTitlePhrase
		}
		score += weightTitleSimilarityMax * similarityRatio(normQuery, normTitle)
	}

	if normAbstract := domain.NormalizeTitle(rec.Abstract); normAbstract != "" && len(queryWords) > 0 {
		for _, w := range queryWords {
			if strings.Contains(normAbstract, w) {
				score += weightAbstractWord
			}
		}
		if strings.Contains(normAbstract, normQuery) {
			score += weightAbstractPhrase
		}
	}

	return score
}

// filterStopWords drops stop words from a word list.
func filterStopWords(words []string) []string {
	out := words[:0]
	for _, w := range words {
		if !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}
