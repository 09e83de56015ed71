package aggregator

import (
	"sort"
	"strings"

	"github.com/itsbakr/minerva-library/internal/domain"
)

// mergeRecords combines two records describing the same work. The record whose
// best constituent source ranks higher in the source-priority table takes the
// primary role and anchors the identity fields; ties keep the first-seen
// record primary, so a left fold over a group is deterministic.
func mergeRecords(a, b domain.Record) domain.Record {
	primary, secondary := a, b
	if sourceRank(b) < sourceRank(a) {
		primary, secondary = b, a
	}

	merged := domain.Record{
		ID:              primary.ID,
		Title:           pickTitle(primary.Title, secondary.Title),
		Authors:         mergeAuthors(primary.Authors, secondary.Authors),
		Abstract:        longerOf(primary.Abstract, secondary.Abstract),
		Source:          mergeSources(primary, secondary),
		DOI:             domain.NormalizeDOI(primary.DOI),
		IsOpenAccess:    primary.IsOpenAccess || secondary.IsOpenAccess,
		OpenAccessURL:   preferURL(primary.OpenAccessURL, secondary.OpenAccessURL),
		CitedByCount:    primary.CitedByCount,
		PublicationYear: primary.PublicationYear,
	}

	if merged.ID == "" || merged.ID == domain.UnknownID {
		merged.ID = secondary.ID
	}
	if merged.DOI == "" {
		merged.DOI = domain.NormalizeDOI(secondary.DOI)
	}
	if secondary.PublicationYear > merged.PublicationYear {
		merged.PublicationYear = secondary.PublicationYear
	}
	if secondary.CitedByCount > merged.CitedByCount {
		merged.CitedByCount = secondary.CitedByCount
	}

	merged.URL = merged.OpenAccessURL
	if merged.URL == "" {
		merged.URL = preferURL(primary.URL, secondary.URL)
	}
	if merged.URL == "" && merged.DOI != "" {
		merged.URL = "https://doi.org/" + merged.DOI
	}

	// Scores are meaningless across a merge; the ranker recomputes them.
	merged.RelevanceScore = 0
	return merged
}

// sourceRank returns the merge priority of a record, the best priority among
// its constituent sources.
func sourceRank(rec domain.Record) int {
	sources := rec.Sources()
	if len(sources) == 0 {
		return domain.SourcePriority("")
	}
	best := domain.SourcePriority(sources[0])
	for _, s := range sources[1:] {
		if p := domain.SourcePriority(s); p < best {
			best = p
		}
	}
	return best
}

// mergeSources joins the union of both records' constituent source names with
// "+", ordered by source priority. First-seen order breaks priority ties.
func mergeSources(primary, secondary domain.Record) string {
	seen := make(map[string]bool)
	var union []string
	for _, s := range append(primary.Sources(), secondary.Sources()...) {
		if !seen[s] {
			seen[s] = true
			union = append(union, s)
		}
	}
	sort.SliceStable(union, func(i, j int) bool {
		return domain.SourcePriority(union[i]) < domain.SourcePriority(union[j])
	})
	return strings.Join(union, "+")
}

// mergeAuthors unions two author lists by normalized name, primary's authors
// first, capped at the record author limit. Placeholder entries are dropped
// when any real author is known.
func mergeAuthors(primary, secondary []domain.Author) []domain.Author {
	seen := make(map[string]bool)
	var union []domain.Author
	for _, a := range append(append([]domain.Author{}, primary...), secondary...) {
		key := domain.NormalizeAuthorName(a.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		union = append(union, a)
	}

	if len(union) > 1 {
		real := union[:0]
		for _, a := range union {
			if a.Name != domain.PlaceholderAuthor {
				real = append(real, a)
			}
		}
		union = real
	}
	if len(union) == 0 {
		union = []domain.Author{{Name: domain.PlaceholderAuthor}}
	}
	if len(union) > domain.MaxAuthors {
		union = union[:domain.MaxAuthors]
	}
	return union
}

// pickTitle keeps the longer of two real titles, falling back to whichever
// side has one.
func pickTitle(a, b string) string {
	if a == domain.PlaceholderTitle {
		a = ""
	}
	if b == domain.PlaceholderTitle {
		b = ""
	}
	if t := longerOf(a, b); t != "" {
		return t
	}
	return domain.PlaceholderTitle
}

// longerOf returns the longer of two strings.
func longerOf(a, b string) string {
	if len(b) > len(a) {
		return b
	}
	return a
}

// preferURL picks between two candidate links: a direct PDF link beats a
// non-PDF link, a DOI-resolver link beats a non-DOI link, and otherwise the
// first non-empty value wins.
func preferURL(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}

	pdfA, pdfB := looksLikePDF(a), looksLikePDF(b)
	if pdfA != pdfB {
		if pdfB {
			return b
		}
		return a
	}

	doiA, doiB := looksLikeDOILink(a), looksLikeDOILink(b)
	if doiA != doiB {
		if doiB {
			return b
		}
		return a
	}
	return a
}

// looksLikePDF reports whether a URL appears to point at a PDF directly.
func looksLikePDF(u string) bool {
	u = strings.ToLower(u)
	return strings.Contains(u, ".pdf") || strings.Contains(u, "/pdf")
}

// looksLikeDOILink reports whether a URL goes through a DOI resolver.
func looksLikeDOILink(u string) bool {
	return strings.Contains(strings.ToLower(u), "doi.org/")
}
