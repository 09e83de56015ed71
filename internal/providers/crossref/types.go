// Package crossref provides a client for the CrossRef REST API.
//
// CrossRef is the DOI registration agency for most scholarly publishers and
// exposes rich citation metadata for registered works. This package implements
// the providers.Provider interface against the works search endpoint.
//
// API Documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

// SearchResponse is the top-level envelope of the works search endpoint.
type SearchResponse struct {
	Status  string  `json:"status"`
	Message Message `json:"message"`
}

// Message holds the actual search payload.
type Message struct {
	TotalResults int    `json:"total-results"`
	Items        []Work `json:"items"`
}

// Work represents a registered work in CrossRef.
type Work struct {
	DOI             string   `json:"DOI"`
	Title           []string `json:"title"`
	Abstract        string   `json:"abstract"`
	Author          []Author `json:"author"`
	PublishedPrint  *Date    `json:"published-print"`
	PublishedOnline *Date    `json:"published-online"`
	Created         *Date    `json:"created"`
	ReferencedBy    int      `json:"is-referenced-by-count"`
	Type            string   `json:"type"`
	Publisher       string   `json:"publisher"`
}

// Author is a contributor entry on a work.
type Author struct {
	Given       string        `json:"given"`
	Family      string        `json:"family"`
	Affiliation []Affiliation `json:"affiliation"`
}

// Affiliation is an author's institutional affiliation.
type Affiliation struct {
	Name string `json:"name"`
}

// Date is CrossRef's date-parts representation. The first element of
// DateParts, when present, is [year, month, day] with month and day optional.
type Date struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year component, or zero when absent.
func (d *Date) Year() int {
	if d == nil || len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}
