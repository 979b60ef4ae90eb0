package main

import (
	"strings"
)

// maxVariants caps the generated spellings per name, which in turn bounds
// the number of oracle queries issued for a single submission.
const maxVariants = 15

type rewriteRule struct {
	from string
	to   []string
}

// transliterations holds the substitution table for alternate Hebrew
// renderings of foreign names: optional vowel letters, doubled vav/yod,
// and the geresh consonants in their various typographic forms.
var transliterations = []rewriteRule{
	{from: "א", to: []string{"", "א"}},
	{from: "ו", to: []string{"ו", "וו"}},
	{from: "י", to: []string{"י", "יי"}},
	{from: "ג'", to: []string{"ג'", "ג׳", "ג`", "ג"}},
	{from: "ג׳", to: []string{"ג'", "ג׳", "ג`", "ג"}},
	{from: "ז'", to: []string{"ז'", "ז׳", "ז`", "ז"}},
	{from: "ז׳", to: []string{"ז'", "ז׳", "ז`", "ז"}},
	{from: "ח'", to: []string{"ח'", "ח׳", "ח`", "ח"}},
	{from: "ח׳", to: []string{"ח'", "ח׳", "ח`", "ח"}},
	{from: "צ'", to: []string{"צ'", "צ׳", "צ`", "צ"}},
	{from: "צ׳", to: []string{"צ'", "צ׳", "צ`", "צ"}},
	{from: "ת'", to: []string{"ת'", "ת׳", "ת`", "ת"}},
	{from: "ת׳", to: []string{"ת'", "ת׳", "ת`", "ת"}},
	{from: "יי", to: []string{"י", "יי"}},
	{from: "וו", to: []string{"ו", "וו"}},
	{from: "אַ", to: []string{"א", "אַ"}},
	{from: "אָ", to: []string{"א", "אָ", "או"}},
	{from: "או", to: []string{"או", "אָ", "ו", "או"}},
	{from: "יי", to: []string{"י", "יי", "אי"}},
}

// tokenVariants expands a single name token by applying each substitution
// rule to the original spelling. The original token always comes first.
func tokenVariants(word string) []string {
	variants := []string{word}
	seen := map[string]bool{word: true}

	for _, rule := range transliterations {
		if !strings.Contains(word, rule.from) {
			continue
		}
		for _, repl := range rule.to {
			out := strings.ReplaceAll(word, rule.from, repl)
			if out == word || seen[out] {
				continue
			}
			seen[out] = true
			variants = append(variants, out)
		}
	}

	return variants
}

// nameVariants joins the per-token variants back into full-name spellings.
// The literal "given family" form is always first, and the result is capped
// at maxVariants entries in insertion order.
func nameVariants(first, last string) []string {
	literal := first + " " + last
	variants := []string{literal}
	seen := map[string]bool{literal: true}

	for _, f := range tokenVariants(first) {
		for _, l := range tokenVariants(last) {
			full := f + " " + l
			if seen[full] {
				continue
			}
			seen[full] = true
			variants = append(variants, full)
			if len(variants) == maxVariants {
				return variants
			}
		}
	}

	return variants
}
