// Package rakuten implements the catalog client against the Rakuten Books search API.
package rakuten

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tigerroll/comical/pkg/batch/adapter/catalog"
	coreConfig "github.com/tigerroll/comical/pkg/batch/core/config"
	"github.com/tigerroll/comical/pkg/batch/support/util/exception"
	"github.com/tigerroll/comical/pkg/batch/support/util/logger"
)

const moduleName = "catalog_client"

// searchResponse mirrors the relevant subset of the Rakuten Books search API response.
type searchResponse struct {
	Items     []itemEnvelope `json:"Items"`
	PageCount int            `json:"pageCount"`
	Page      int            `json:"page"`
	Count     int            `json:"count"`
	Hits      int            `json:"hits"`
}

// itemEnvelope wraps each entry; the API nests the payload under "Item".
type itemEnvelope struct {
	Item itemPayload `json:"Item"`
}

type itemPayload struct {
	ISBN          string `json:"isbn"`
	Title         string `json:"title"`
	Author        string `json:"author"`
	PublisherName string `json:"publisherName"`
	SalesDate     string `json:"salesDate"`
	LargeImageURL string `json:"largeImageUrl"`
	ListPrice     int    `json:"listPrice"`
	ItemPrice     int    `json:"itemPrice"`
}

// Client is the HTTP implementation of catalog.Client for the Rakuten Books API.
type Client struct {
	httpClient *http.Client
	cfg        coreConfig.CatalogConfig
}

// Verify that Client implements the catalog.Client interface.
var _ catalog.Client = (*Client)(nil)

// NewClient creates a catalog client from the application configuration.
func NewClient(cfg *coreConfig.Config) *Client {
	catalogCfg := cfg.Comical.Batch.Catalog
	return &Client{
		httpClient: &http.Client{Timeout: catalogCfg.Timeout()},
		cfg:        catalogCfg,
	}
}

// NewClientWithHTTPClient creates a catalog client with an explicit http.Client,
// mainly for tests.
func NewClientWithHTTPClient(cfg coreConfig.CatalogConfig, httpClient *http.Client) *Client {
	return &Client{httpClient: httpClient, cfg: cfg}
}

// FetchPage fetches one page of the genre-restricted catalog search, sorted by
// release date.
func (c *Client) FetchPage(ctx context.Context, page int) (*catalog.PageResult, error) {
	if page < 1 {
		return nil, exception.NewBatchErrorf(moduleName, "page must be >= 1, got %d", page)
	}

	reqURL, err := c.buildURL(page)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to build catalog request URL", err, false, false)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to create catalog request", err, false, false)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("catalog request for page %d failed", page), err, false, true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, exception.NewBatchErrorf(moduleName, "catalog API returned status %d for page %d: %s",
			resp.StatusCode, page, string(body), false, retryable)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to decode catalog response for page %d", page), err, false, false)
	}

	result := &catalog.PageResult{
		Page:      page,
		PageCount: decoded.PageCount,
		Items:     make([]catalog.Item, 0, len(decoded.Items)),
	}
	for _, envelope := range decoded.Items {
		item := envelope.Item
		price := item.ListPrice
		if price == 0 {
			price = item.ItemPrice
		}
		result.Items = append(result.Items, catalog.Item{
			ISBN:      item.ISBN,
			Title:     item.Title,
			Author:    item.Author,
			Publisher: item.PublisherName,
			SalesDate: item.SalesDate,
			ImageURL:  item.LargeImageURL,
			Price:     price,
		})
	}

	logger.Debugf("Fetched catalog page %d/%d with %d items", page, decoded.PageCount, len(result.Items))
	return result, nil
}

// buildURL assembles the search URL for one page.
func (c *Client) buildURL(page int) (string, error) {
	base, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", err
	}

	q := base.Query()
	q.Set("applicationId", c.cfg.ApplicationID)
	q.Set("booksGenreId", c.cfg.GenreID)
	q.Set("sort", "+releaseDate")
	q.Set("availability", "5")
	q.Set("page", strconv.Itoa(page))
	if c.cfg.PageSize > 0 {
		q.Set("hits", strconv.Itoa(c.cfg.PageSize))
	}
	q.Set("format", "json")
	base.RawQuery = q.Encode()
	return base.String(), nil
}
