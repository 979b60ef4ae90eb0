package main

import (
	"context"
	"sync"
)

// testConfig returns a config with all pacing zeroed so tests never sleep.
func testConfig() *Config {
	return &Config{
		bind:          "127.0.0.1",
		port:          8080,
		minGroupSize:  4,
		oracleURL:     "https://he.wikipedia.org/w/api.php",
		verifyRetries: 3,
	}
}

// fakeOracle serves canned hits keyed by query. Requests with the fallback
// limit get the fallback slice instead, mirroring the classifier's two-tier
// search.
type fakeOracle struct {
	mu       sync.Mutex
	hits     map[string][]SearchHit
	fallback []SearchHit
	err      error
	calls    int
	queries  []string
}

func (o *fakeOracle) Search(ctx context.Context, query string, limit int) ([]SearchHit, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.calls++
	o.queries = append(o.queries, query)

	if o.err != nil {
		return nil, o.err
	}
	if limit == fallbackLimit {
		return o.fallback, nil
	}
	return o.hits[query], nil
}

func (o *fakeOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}
