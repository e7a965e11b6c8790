package rakuten_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/comical/pkg/batch/adapter/catalog/rakuten"
	coreConfig "github.com/tigerroll/comical/pkg/batch/core/config"
	"github.com/tigerroll/comical/pkg/batch/support/util/exception"
)

func newTestClient(serverURL string) *rakuten.Client {
	cfg := coreConfig.CatalogConfig{
		Endpoint:       serverURL,
		ApplicationID:  "test-app-id",
		GenreID:        "001001",
		PageSize:       30,
		TimeoutSeconds: 5,
	}
	return rakuten.NewClientWithHTTPClient(cfg, &http.Client{})
}

func TestFetchPage_ParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-app-id", q.Get("applicationId"))
		assert.Equal(t, "001001", q.Get("booksGenreId"))
		assert.Equal(t, "+releaseDate", q.Get("sort"))
		assert.Equal(t, "3", q.Get("page"))
		assert.Equal(t, "30", q.Get("hits"))
		assert.Equal(t, "json", q.Get("format"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"Items": [
				{"Item": {"isbn": "9784000000001", "title": "Vol. 1", "author": "Author A",
					"publisherName": "Pub", "salesDate": "2026-09-01", "largeImageUrl": "https://img.example/1.jpg",
					"listPrice": 700, "itemPrice": 0}},
				{"Item": {"isbn": "9784000000002", "title": "Vol. 2", "author": "Author B",
					"publisherName": "Pub", "salesDate": "2026-09-02", "largeImageUrl": "",
					"listPrice": 0, "itemPrice": 650}}
			],
			"pageCount": 12,
			"page": 3,
			"count": 340,
			"hits": 30
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.FetchPage(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Page)
	assert.Equal(t, 12, result.PageCount)
	require.Len(t, result.Items, 2)

	first := result.Items[0]
	assert.Equal(t, "9784000000001", first.ISBN)
	assert.Equal(t, "Vol. 1", first.Title)
	assert.Equal(t, "Author A", first.Author)
	assert.Equal(t, "Pub", first.Publisher)
	assert.Equal(t, "https://img.example/1.jpg", first.ImageURL)
	assert.Equal(t, 700, first.Price)

	// listPrice of 0 falls back to itemPrice.
	assert.Equal(t, 650, result.Items[1].Price)
}

func TestFetchPage_RejectsInvalidPageNumber(t *testing.T) {
	client := newTestClient("http://localhost:0")

	_, err := client.FetchPage(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, exception.IsBatchError(err))
}

func TestFetchPage_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, exception.IsTemporary(err))
}

func TestFetchPage_TooManyRequestsIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, exception.IsTemporary(err))
}

func TestFetchPage_ClientErrorIsNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "wrong application id", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, exception.IsTemporary(err))
}

func TestFetchPage_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Items": [`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchPage(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, exception.IsBatchError(err))
}

func TestFetchPage_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(server.URL)
	_, err := client.FetchPage(ctx, 1)
	require.Error(t, err)
}
