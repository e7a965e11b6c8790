// Package catalog defines the client interface for the upstream book catalog API
// and its data types. The concrete HTTP implementation lives in the rakuten subpackage.
package catalog

import (
	"context"
)

// Item is one catalog entry returned by a page fetch.
type Item struct {
	// ISBN uniquely identifies the item. May be empty for malformed entries.
	ISBN string
	// Title is the item title.
	Title string
	// Author is the primary author name.
	Author string
	// Publisher is the publishing label.
	Publisher string
	// SalesDate is the raw sales date string as reported upstream.
	SalesDate string
	// ImageURL is the cover image URL. May be empty.
	ImageURL string
	// Price is the list price.
	Price int
}

// PageResult is the outcome of fetching one catalog page.
type PageResult struct {
	// Page is the 1-based page number that was fetched.
	Page int
	// PageCount is the total number of pages reported by the catalog for the query.
	PageCount int
	// Items are the entries of this page.
	Items []Item
}

// Client fetches pages from the upstream catalog.
type Client interface {
	// FetchPage fetches the given 1-based page.
	FetchPage(ctx context.Context, page int) (*PageResult, error)
}
