// Package biorxiv provides a client for the bioRxiv and medRxiv preprint APIs.
//
// The Rxiv details API is date-based rather than keyword-based: it pages
// through every preprint posted in a date interval, 100 at a time. Search is
// therefore implemented by fetching a recent window from both servers and
// filtering client-side against the query, then ranking and paginating the
// survivors in memory.
//
// API Documentation: https://api.biorxiv.org/
package biorxiv

// DetailsResponse is the response of the details endpoint.
type DetailsResponse struct {
	Messages   []Message  `json:"messages"`
	Collection []Preprint `json:"collection"`
}

// Message carries cursor metadata for the interval. Total is a string in the
// upstream JSON.
type Message struct {
	Status string `json:"status"`
	Total  string `json:"total"`
	Cursor any    `json:"cursor"`
}

// Preprint is one posted preprint version.
type Preprint struct {
	DOI      string `json:"doi"`
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Authors  string `json:"authors"` // semicolon-separated
	Date     string `json:"date"`    // "2006-01-02"
	Version  string `json:"version"`
	Category string `json:"category"`
	Server   string `json:"server"`
}
