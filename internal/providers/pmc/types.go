// Package pmc provides a client for the PubMed Central open access archive.
//
// PMC is searched through the NCBI E-utilities: ESearch resolves a term to a
// list of PMC IDs and ESummary returns document summaries for those IDs. The
// two calls are chained inside Search. Summaries carry no abstracts; those
// would require an additional EFetch round trip.
//
// API Documentation: https://www.ncbi.nlm.nih.gov/books/NBK25501/
package pmc

import "encoding/json"

// ESearchResponse is the envelope of an esearch.fcgi call.
type ESearchResponse struct {
	Result ESearchResult `json:"esearchresult"`
}

// ESearchResult carries the matching IDs and the total hit count.
// Count is a string in NCBI's JSON.
type ESearchResult struct {
	Count  string   `json:"count"`
	IDList []string `json:"idlist"`
}

// ESummaryResponse is the envelope of an esummary.fcgi call. The result
// object maps each requested ID to its summary, alongside a "uids" key, so
// the documents have to be decoded per ID.
type ESummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// DocSummary is the summary of a single PMC article.
type DocSummary struct {
	UID             string      `json:"uid"`
	Title           string      `json:"title"`
	PubDate         string      `json:"pubdate"`
	EPubDate        string      `json:"epubdate"`
	Source          string      `json:"source"`
	FullJournalName string      `json:"fulljournalname"`
	Authors         []DocAuthor `json:"authors"`
	ArticleIDs      []ArticleID `json:"articleids"`
}

// DocAuthor is an author entry on a document summary.
type DocAuthor struct {
	Name string `json:"name"`
}

// ArticleID is a typed identifier attached to a document (doi, pmid, ...).
type ArticleID struct {
	IDType string `json:"idtype"`
	Value  string `json:"value"`
}
