// Package opentextbook provides a client for the Open Textbook Library.
//
// The library publishes its whole catalog of peer-reviewed open textbooks as
// a single JSON document. The dataset is small, so the client caches the full
// catalog with a TTL and answers searches by filtering it in memory.
//
// API Documentation: https://open.umn.edu/opentextbooks/api-docs/index.html
package opentextbook

import "encoding/json"

// CatalogResponse is the response of the textbooks endpoint. Depending on the
// endpoint variant the catalog arrives either as a bare array or wrapped in a
// "data" object.
type CatalogResponse struct {
	Data []Textbook `json:"data"`
}

// Textbook is one catalog entry.
type Textbook struct {
	ID            json.Number   `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	CopyrightYear json.Number   `json:"copyright_year"`
	URL           string        `json:"url"`
	PDFURL        string        `json:"pdf_url"`
	Link          string        `json:"link"`
	Contributors  []Contributor `json:"contributors"`
	Subjects      []Subject     `json:"subjects"`
}

// Contributor is an author or editor of a textbook.
type Contributor struct {
	Name string `json:"name"`
}

// Subject is a catalog subject classification.
type Subject struct {
	Name string `json:"name"`
}
