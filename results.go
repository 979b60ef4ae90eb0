package main

import (
	"context"
	"strings"
	"time"
)

// GroupResult is the per-group rollup, recomputed on demand and never
// persisted. The member* fields are populated for nominal groups only.
type GroupResult struct {
	GroupID           int64                   `json:"groupId"`
	GroupName         string                  `json:"groupName"`
	Type              GroupType               `json:"type"`
	TotalNames        int                     `json:"totalNames"`
	VerifiedNames     int                     `json:"verifiedNames"`
	Names             []string                `json:"names"`
	Verifications     map[string]Verification `json:"verificationResults"`
	AvgPerMember      float64                 `json:"avgPerMember"`
	MemberCount       int                     `json:"memberCount"`
	ActiveMember      string                  `json:"activeMember,omitempty"`
	MemberSubmissions map[string]int          `json:"memberSubmissions,omitempty"`
	MemberVerified    map[string]int          `json:"memberVerifiedCounts,omitempty"`
	MemberAnswers     map[string][]string     `json:"memberDetailedAnswers,omitempty"`
}

type TypeSummary struct {
	GroupCount    int     `json:"groupCount"`
	MemberCount   int     `json:"memberCount"`
	VerifiedNames int     `json:"verifiedNames"`
	AvgPerMember  float64 `json:"avgPerMember"`
	AvgPerGroup   float64 `json:"avgPerGroup"`
}

type Results struct {
	GroupResults []GroupResult             `json:"groupResults"`
	Summary      map[GroupType]TypeSummary `json:"summary"`
	ComputedAt   time.Time                 `json:"computedAt"`
}

// Aggregator computes group and summary results from the current store
// contents. Every call re-verifies all unique names; nothing is cached
// between passes.
type Aggregator struct {
	cfg      *Config
	verifier *Verifier
}

func newAggregator(cfg *Config, verifier *Verifier) *Aggregator {
	return &Aggregator{
		cfg:      cfg,
		verifier: verifier,
	}
}

// ComputeAll snapshots the store and scores every group, sequentially, so
// oracle pacing is respected across the whole pass.
func (a *Aggregator) ComputeAll(ctx context.Context, store *Store) Results {
	in := store.aggregationView()

	results := Results{
		GroupResults: []GroupResult{},
		Summary: map[GroupType]TypeSummary{
			GroupRegular: {},
			GroupNominal: {},
		},
		ComputedAt: time.Now(),
	}

	for _, group := range in.groups {
		var gr GroupResult
		if group.Type == GroupRegular {
			gr = a.regularResult(ctx, group, in)
		} else {
			gr = a.nominalResult(ctx, group, in)
		}
		results.GroupResults = append(results.GroupResults, gr)

		summary := results.Summary[group.Type]
		summary.GroupCount++
		summary.MemberCount += len(group.Members)
		summary.VerifiedNames += gr.VerifiedNames
		results.Summary[group.Type] = summary
	}

	for gtype, summary := range results.Summary {
		if summary.GroupCount > 0 {
			summary.AvgPerGroup = float64(summary.VerifiedNames) / float64(summary.GroupCount)
		}
		if summary.MemberCount > 0 {
			summary.AvgPerMember = float64(summary.VerifiedNames) / float64(summary.MemberCount)
		}
		results.Summary[gtype] = summary
	}

	return results
}

// regularResult scores a shared-submission group: per-pair dedup and batch
// classification, then overrides, then counts.
func (a *Aggregator) regularResult(ctx context.Context, group Group, in aggregateInput) GroupResult {
	answers := in.groupSubs[group.ID]

	verifications := make(map[string]Verification)
	var uniqueNames []string
	seen := make(map[string]bool)

	for _, pair := range letterPairs {
		pairNames := uniqueNonBlank(answers[pair])
		if len(pairNames) == 0 {
			continue
		}

		for name, res := range a.verifier.VerifyBatch(ctx, pairNames, pair) {
			verifications[name] = res
		}

		for _, name := range pairNames {
			if !seen[name] {
				seen[name] = true
				uniqueNames = append(uniqueNames, name)
			}
		}
	}

	applyOverrides(verifications, uniqueNames, in.overrides)

	verified := countValid(verifications, uniqueNames)

	result := GroupResult{
		GroupID:       group.ID,
		GroupName:     group.Name,
		Type:          GroupRegular,
		TotalNames:    len(uniqueNames),
		VerifiedNames: verified,
		Names:         uniqueNames,
		Verifications: verifications,
		MemberCount:   len(group.Members),
	}

	if len(group.Members) > 0 {
		result.AvgPerMember = float64(verified) / float64(len(group.Members))
	}

	if submitterID, ok := in.submitters[group.ID]; ok {
		if student, ok := in.students[submitterID]; ok {
			result.ActiveMember = student.Name
		}
	}

	return result
}

// nominalResult pools all members' answers for verification (each unique
// name is checked once) while crediting members individually for their own
// submitted names.
func (a *Aggregator) nominalResult(ctx context.Context, group Group, in aggregateInput) GroupResult {
	pooled := make(map[string][]string)
	memberAnswers := make(map[string][]string, len(group.Members))
	memberSubmitted := make(map[string]int, len(group.Members))

	for _, member := range group.Members {
		answers := in.studentSubs[member.ID]
		memberAnswers[member.Name] = []string{}
		total := 0

		for _, pair := range letterPairs {
			pairNames := nonBlank(answers[pair])
			pooled[pair] = append(pooled[pair], pairNames...)
			memberAnswers[member.Name] = append(memberAnswers[member.Name], pairNames...)
			total += len(pairNames)
		}

		memberSubmitted[member.Name] = total
	}

	verifications := make(map[string]Verification)
	var uniqueNames []string
	seen := make(map[string]bool)

	for _, pair := range letterPairs {
		pairNames := uniqueNonBlank(pooled[pair])
		if len(pairNames) == 0 {
			continue
		}

		for name, res := range a.verifier.VerifyBatch(ctx, pairNames, pair) {
			verifications[name] = res
		}

		for _, name := range pairNames {
			if !seen[name] {
				seen[name] = true
				uniqueNames = append(uniqueNames, name)
			}
		}
	}

	applyOverrides(verifications, uniqueNames, in.overrides)

	verified := countValid(verifications, uniqueNames)

	memberVerified := make(map[string]int, len(group.Members))
	for _, member := range group.Members {
		count := 0
		for _, name := range uniqueNonBlank(memberAnswers[member.Name]) {
			if verifications[name].Status == StatusValid {
				count++
			}
		}
		memberVerified[member.Name] = count
	}

	result := GroupResult{
		GroupID:           group.ID,
		GroupName:         group.Name,
		Type:              GroupNominal,
		TotalNames:        len(uniqueNames),
		VerifiedNames:     verified,
		Names:             uniqueNames,
		Verifications:     verifications,
		MemberCount:       len(group.Members),
		MemberSubmissions: memberSubmitted,
		MemberVerified:    memberVerified,
		MemberAnswers:     memberAnswers,
	}

	if len(group.Members) > 0 {
		result.AvgPerMember = float64(verified) / float64(len(group.Members))
	}

	return result
}

// applyOverrides replaces classifier verdicts with lecturer ones. Lookup is
// by exact literal name; variants are never consulted here.
func applyOverrides(verifications map[string]Verification, names []string, overrides map[string]ManualOverride) {
	for _, name := range names {
		if override, ok := overrides[name]; ok {
			verifications[name] = override.verification()
		}
	}
}

func countValid(verifications map[string]Verification, names []string) int {
	count := 0
	for _, name := range names {
		if verifications[name].Status == StatusValid {
			count++
		}
	}
	return count
}

func nonBlank(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) != "" {
			out = append(out, name)
		}
	}
	return out
}

func uniqueNonBlank(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range nonBlank(names) {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
