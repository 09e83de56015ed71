// Package domain contains the core types shared across the aggregation service.
package domain

import (
	"strings"
	"unicode"
)

// Sentinel values used when a provider supplies incomplete metadata.
const (
	// UnknownID is substituted when a provider item carries no identifier.
	UnknownID = "unknown"

	// PlaceholderTitle is substituted when a provider item carries no title.
	PlaceholderTitle = "Untitled"

	// PlaceholderAuthor is substituted when a provider item carries no authors.
	PlaceholderAuthor = "Unknown Author"

	// MaxAuthors caps the author list on any record, including merged records.
	MaxAuthors = 5

	// MaxAbstractLen is the character budget for abstracts. Longer abstracts
	// are truncated and marked with an ellipsis.
	MaxAbstractLen = 500
)

// Source name constants. These are the canonical display names used in the
// Record.Source field and in provider status reports.
const (
	SourceOpenAlex     = "OpenAlex"
	SourceCrossRef     = "CrossRef"
	SourcePMC          = "PMC"
	SourceArXiv        = "arXiv"
	SourceBioRxiv      = "bioRxiv"
	SourceMedRxiv      = "medRxiv"
	SourceDOAJ         = "DOAJ"
	SourceOpenTextbook = "Open Textbook Library"
	SourceUnpaywall    = "Unpaywall"
)

// sourcePriority ranks sources by metadata trustworthiness. A lower index wins
// the primary role when two records merge, and orders the "+"-joined source
// string on merged records. New providers must be assigned a slot here.
var sourcePriority = map[string]int{
	SourceOpenAlex:     0,
	SourceCrossRef:     1,
	SourcePMC:          2,
	SourceArXiv:        3,
	SourceBioRxiv:      4,
	SourceMedRxiv:      5,
	SourceDOAJ:         6,
	SourceOpenTextbook: 7,
	SourceUnpaywall:    8,
}

// SourcePriority returns the merge priority for a source name. Unknown sources
// rank below all known ones so they never anchor a merged record.
func SourcePriority(source string) int {
	if p, ok := sourcePriority[source]; ok {
		return p
	}
	return len(sourcePriority)
}

// Author is one contributor to a bibliographic work.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Record is the normalized representation of one bibliographic work as known
// from one or more providers. Records are created by provider adapters, may
// have their open-access fields rewritten by the enrichment pass, are replaced
// by merged records in the reconciler, and are finally annotated with a
// relevance score by the ranker. No record outlives one aggregation call.
type Record struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Authors         []Author `json:"authors"`
	Abstract        string   `json:"abstract,omitempty"`
	PublicationYear int      `json:"publication_year,omitempty"`
	Source          string   `json:"source"`
	DOI             string   `json:"doi,omitempty"`
	URL             string   `json:"url,omitempty"`
	IsOpenAccess    bool     `json:"is_open_access"`
	OpenAccessURL   string   `json:"open_access_url,omitempty"`
	CitedByCount    int      `json:"cited_by_count"`

	// RelevanceScore is assigned by the ranker and is meaningless before
	// ranking. Merging resets it to zero.
	RelevanceScore float64 `json:"relevance_score"`
}

// Sanitize enforces the record invariants expected downstream of a provider
// adapter: a non-empty id, a non-empty title and author list (placeholders are
// substituted), a canonical DOI, a capped author list, and a truncated
// abstract. Adapters call this on every record they emit.
func (r *Record) Sanitize() {
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		r.ID = UnknownID
	}

	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		r.Title = PlaceholderTitle
	}

	if len(r.Authors) == 0 {
		r.Authors = []Author{{Name: PlaceholderAuthor}}
	}
	if len(r.Authors) > MaxAuthors {
		r.Authors = r.Authors[:MaxAuthors]
	}

	r.DOI = NormalizeDOI(r.DOI)
	r.Abstract = TruncateAbstract(strings.TrimSpace(r.Abstract))
	if r.CitedByCount < 0 {
		r.CitedByCount = 0
	}
}

// HasDOI reports whether the record carries a usable normalized DOI.
func (r *Record) HasDOI() bool {
	return r.DOI != ""
}

// Sources returns the individual source names contributing to this record.
// A merged record's Source field joins its constituents with "+".
func (r *Record) Sources() []string {
	if r.Source == "" {
		return nil
	}
	parts := strings.Split(r.Source, "+")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// doiPrefixes are the URL and scheme prefixes stripped during normalization.
// Matching is case-insensitive; normalization lowercases first.
var doiPrefixes = []string{
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
	"doi:",
}

// NormalizeDOI lowercases a DOI and strips known resolver-URL and scheme
// prefixes. Returns "" if nothing usable remains.
func NormalizeDOI(doi string) string {
	doi = strings.ToLower(strings.TrimSpace(doi))
	for _, prefix := range doiPrefixes {
		doi = strings.TrimPrefix(doi, prefix)
	}
	return strings.TrimSpace(doi)
}

// NormalizeTitle lowercases a title, strips punctuation, and collapses
// whitespace, producing the key used for title-based deduplication. The
// placeholder title normalizes to "" so untitled records are never grouped.
func NormalizeTitle(title string) string {
	title = strings.ToLower(strings.TrimSpace(title))
	if title == "" || title == strings.ToLower(PlaceholderTitle) {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(title))
	prevSpace := false
	for _, r := range title {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

// NormalizeAuthorName normalizes an author name for merge comparison:
// lowercase, "Last, First" reordered to "First Last", non-letter characters
// dropped, whitespace collapsed.
func NormalizeAuthorName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	if idx := strings.Index(name, ","); idx >= 0 {
		last := strings.TrimSpace(name[:idx])
		first := strings.TrimSpace(name[idx+1:])
		if first != "" {
			name = first + " " + last
		} else {
			name = last
		}
	}

	var sb strings.Builder
	sb.Grow(len(name))
	prevSpace := false
	for _, r := range name {
		switch {
		case unicode.IsLetter(r):
			sb.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r):
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	return strings.TrimRight(sb.String(), " ")
}

// TruncateAbstract enforces the abstract character budget, appending an
// ellipsis when truncation occurs.
func TruncateAbstract(abstract string) string {
	if len(abstract) <= MaxAbstractLen {
		return abstract
	}
	return abstract[:MaxAbstractLen] + "..."
}

// ProviderStatus is the outcome class of one provider dispatch.
type ProviderStatus string

// Provider dispatch outcomes.
const (
	// StatusOK means the provider completed and every response item mapped
	// to a record.
	StatusOK ProviderStatus = "ok"

	// StatusPartial means the provider completed but some response items
	// could not be mapped and were skipped.
	StatusPartial ProviderStatus = "partial"

	// StatusTimeout means the per-provider deadline fired before completion.
	StatusTimeout ProviderStatus = "timeout"

	// StatusError covers every other provider failure.
	StatusError ProviderStatus = "error"
)

// ProviderOutcome is the per-provider result of one dispatch. Produced once
// per configured provider per aggregation call, in declaration order, and
// never mutated afterwards.
type ProviderOutcome struct {
	Name            string         `json:"name"`
	Status          ProviderStatus `json:"status"`
	ResultCount     int            `json:"result_count"`
	ResponseSeconds float64        `json:"response_time,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
}

// Succeeded reports whether the provider completed its call, fully or
// partially.
func (o ProviderOutcome) Succeeded() bool {
	return o.Status == StatusOK || o.Status == StatusPartial
}
