package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

type Status string

const (
	StatusValid        Status = "valid"
	StatusInvalid      Status = "invalid"
	StatusManualReview Status = "manual_review"
)

// Verification is the terminal classification of one submitted name. Every
// name gets exactly one per scoring pass, unless a lecturer override
// replaces it.
type Verification struct {
	Status      Status `json:"status"`
	Reason      string `json:"reason,omitempty"`
	Match       string `json:"match,omitempty"`
	Description string `json:"description,omitempty"`
	Lecturer    bool   `json:"manuallyVerified,omitempty"`
}

const (
	reasonVerified     = "verified"
	reasonManualReview = "needs lecturer review"
	reasonNotFound     = "not found as a known public figure"
	reasonVerifyError  = "verification error"
)

const (
	searchLimit   = 5
	fallbackLimit = 10
)

// personIndicators are biographical markers scanned for in Hebrew Wikipedia
// titles and snippets: birth/death phrasing, occupations, honorifics. The
// exact list is tuning policy, not contract.
var personIndicators = []string{
	"(נולד", "(נפטר", "(נ.", "(נולדה", "(נפטרה",
	"הייתה", "היה", "היתה",
	"זמר", "זמרת", "שחקן", "שחקנית", "רב", "רבנית",
	"פוליטיקאי", "ספורטאי", "כדורגלן", "סופר", "סופרת",
	"שר", "שרה", "ראש ממשלה", "נשיא", "נשיאה",
	"פרופסור", `ד"ר`, `מנכ"ל`, "יזם", "יזמית",
	"CEO", "founder", "מייסד", "בעל", "ח״כ",
}

// weakIndicators is the looser list used by the fallback search that feeds
// the manual-review tier.
var weakIndicators = []string{
	"נולד", "נפטר", "הייתה", "היה", "זמר", "שחקן", "רב",
	"פוליטיקאי", "ספורטאי", "סופר", "שר", "נשיא", "פרופסור", "יזם", "CEO",
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Verifier classifies submitted names against the oracle.
type Verifier struct {
	cfg    *Config
	oracle Oracle
}

func newVerifier(cfg *Config, oracle Oracle) *Verifier {
	return &Verifier{
		cfg:    cfg,
		oracle: oracle,
	}
}

// Verify classifies one name against a letter pair. Structural failures
// short-circuit without any oracle traffic; unexpected failures retry the
// whole classification with a fixed backoff before degrading to Invalid.
func (v *Verifier) Verify(ctx context.Context, name, pair string) Verification {
	name = strings.TrimSpace(name)

	if res := validateName(name, pair); res != nil {
		return *res
	}

	for attempt := 0; ; attempt++ {
		res, err := v.classify(ctx, name, pair)
		if err == nil {
			return res
		}

		if ctx.Err() != nil || attempt >= v.cfg.verifyRetries {
			logf(v.cfg, "VERIFY: Giving up on %q: %v", name, err)
			return Verification{Status: StatusInvalid, Reason: reasonVerifyError}
		}

		logf(v.cfg, "VERIFY: Retrying %q (%d retries left): %v", name, v.cfg.verifyRetries-attempt, err)
		v.pause(ctx, v.cfg.retryBackoff)
	}
}

// VerifyBatch classifies each name in order, pacing oracle-bound names so a
// whole batch stays under the search API's rate limits. Results are keyed by
// the name exactly as submitted. Blank entries are skipped.
func (v *Verifier) VerifyBatch(ctx context.Context, names []string, pair string) map[string]Verification {
	results := make(map[string]Verification, len(names))

	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}

		if res := validateName(trimmed, pair); res != nil {
			results[name] = *res
			continue
		}

		logf(v.cfg, "VERIFY: Checking %q for pair %s", trimmed, pair)
		results[name] = v.Verify(ctx, trimmed, pair)
		v.pause(ctx, v.cfg.nameDelay)
	}

	return results
}

// classify runs the query fan-out. The first query whose hit passes the
// acceptance heuristic wins, so query order is load-bearing: generated
// variants first (bare, then quoted), then the original name.
func (v *Verifier) classify(ctx context.Context, name, pair string) (Verification, error) {
	first, last, _ := splitName(name)
	variants := nameVariants(first, last)

	queries := make([]string, 0, len(variants)*2+2)
	for _, variant := range variants {
		queries = append(queries, variant, `"`+variant+`"`)
	}
	queries = append(queries, name, `"`+name+`"`)

	for _, query := range queries {
		hits, err := v.oracle.Search(ctx, query, searchLimit)
		if err != nil {
			if ctx.Err() != nil {
				return Verification{}, ctx.Err()
			}
			logf(v.cfg, "VERIFY: Search %q failed: %v", query, err)
			continue
		}

		for _, hit := range hits {
			if res, ok := scoreHit(hit, name, first, last, variants); ok {
				return res, nil
			}
		}

		v.pause(ctx, v.cfg.queryDelay)
	}

	hits, err := v.oracle.Search(ctx, name, fallbackLimit)
	if err != nil {
		if ctx.Err() != nil {
			return Verification{}, ctx.Err()
		}
		logf(v.cfg, "VERIFY: Fallback search for %q failed: %v", name, err)
	} else {
		for _, hit := range hits {
			if res, ok := scoreFallbackHit(hit, first, last); ok {
				return res, nil
			}
		}
	}

	return Verification{Status: StatusInvalid, Reason: reasonNotFound}, nil
}

// scoreHit applies the acceptance heuristic to a single search hit: the
// title must cover both name tokens with a biographical corroboration, or
// match the name exactly with a person indicator.
func scoreHit(hit SearchHit, name, first, last string, variants []string) (Verification, bool) {
	title := strings.ToLower(strings.TrimSpace(hit.Title))
	nameLower := strings.ToLower(strings.TrimSpace(name))

	containsFirst := strings.Contains(title, strings.ToLower(first))
	containsLast := strings.Contains(title, strings.ToLower(last))

	// Token containment is checked against every variant's tokens, not just
	// the original spelling.
	for _, variant := range variants {
		parts := strings.Fields(strings.ToLower(variant))
		if len(parts) == 0 {
			continue
		}
		if strings.Contains(title, parts[0]) {
			containsFirst = true
		}
		if strings.Contains(title, parts[len(parts)-1]) {
			containsLast = true
		}
	}

	containsBoth := containsFirst && containsLast
	exact := title == nameLower
	closeMatch := strings.Contains(title, nameLower) || strings.Contains(nameLower, title)

	if !exact && !containsBoth && !closeMatch {
		return Verification{}, false
	}

	indicator := containsAnyIndicator(hit.Snippet, hit.Title, personIndicators)
	year := yearPattern.MatchString(hit.Snippet)

	if (containsBoth && (indicator || year)) || (exact && indicator) {
		return Verification{
			Status:      StatusValid,
			Reason:      reasonVerified,
			Match:       hit.Title,
			Description: excerpt(hit.Snippet, 200),
		}, true
	}

	return Verification{}, false
}

// scoreFallbackHit is the deliberately low-confidence tier: one matching
// token plus a weak person indicator surfaces the hit for lecturer review
// instead of rejecting it outright.
func scoreFallbackHit(hit SearchHit, first, last string) (Verification, bool) {
	title := strings.ToLower(hit.Title)

	hasFirst := strings.Contains(title, strings.ToLower(first))
	hasLast := strings.Contains(title, strings.ToLower(last))

	if !hasFirst && !hasLast {
		return Verification{}, false
	}

	if !containsAnyIndicator(hit.Snippet, hit.Title, weakIndicators) {
		return Verification{}, false
	}

	return Verification{
		Status:      StatusManualReview,
		Reason:      reasonManualReview,
		Match:       hit.Title,
		Description: fmt.Sprintf("partial match: %q. %s", hit.Title, excerpt(hit.Snippet, 150)),
	}, true
}

func containsAnyIndicator(snippet, title string, indicators []string) bool {
	for _, indicator := range indicators {
		if strings.Contains(snippet, indicator) || strings.Contains(title, indicator) {
			return true
		}
	}
	return false
}

// excerpt truncates s to at most n runes.
func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// pause sleeps for d unless the context is cancelled first.
func (v *Verifier) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
