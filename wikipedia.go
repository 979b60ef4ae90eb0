package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// SearchHit is one result from the knowledge oracle: an article title and a
// plain-text snippet of its opening.
type SearchHit struct {
	Title   string
	Snippet string
}

// Oracle is the text-search service used as the ground-truth signal for
// "is this a real public figure".
type Oracle interface {
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)
}

// WikipediaOracle queries the MediaWiki search API of the Hebrew Wikipedia.
type WikipediaOracle struct {
	endpoint string
	httpc    *http.Client
}

func newWikipediaOracle(endpoint string) *WikipediaOracle {
	return &WikipediaOracle{
		endpoint: endpoint,
		httpc:    &http.Client{Timeout: 10 * time.Second},
	}
}

var htmlTags = regexp.MustCompile(`<[^>]*>`)

func (o *WikipediaOracle) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	u, err := url.Parse(o.endpoint)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("srsearch", query)
	q.Set("format", "json")
	q.Set("origin", "*")
	q.Set("srlimit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wikipedia search: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
			} `json:"search"`
		} `json:"query"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(payload.Query.Search))
	for _, s := range payload.Query.Search {
		hits = append(hits, SearchHit{
			Title:   s.Title,
			Snippet: htmlTags.ReplaceAllString(s.Snippet, ""),
		})
	}

	return hits, nil
}
