// Package doaj provides a client for the Directory of Open Access Journals API.
//
// DOAJ indexes peer-reviewed open access journals and their articles. Every
// article it returns is open access by definition. This package implements
// the providers.Provider interface over the article search endpoint.
//
// API Documentation: https://doaj.org/docs/api/
package doaj

// SearchResponse is the top-level response of the article search endpoint.
type SearchResponse struct {
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
	Results  []Article `json:"results"`
}

// Article is one indexed article.
type Article struct {
	ID      string  `json:"id"`
	BibJSON BibJSON `json:"bibjson"`
}

// BibJSON carries the bibliographic payload of an article.
type BibJSON struct {
	Title      string       `json:"title"`
	Abstract   string       `json:"abstract"`
	Year       string       `json:"year"`
	Author     []Author     `json:"author"`
	Identifier []Identifier `json:"identifier"`
	Link       []Link       `json:"link"`
	Journal    *Journal     `json:"journal"`
}

// Author is an article contributor.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
}

// Identifier is a typed identifier such as a DOI or ISSN.
type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Link is a typed URL, usually the full-text location.
type Link struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Journal describes the publishing journal.
type Journal struct {
	Title     string `json:"title"`
	Publisher string `json:"publisher"`
}
