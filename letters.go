package main

import (
	"fmt"
	"strings"
)

// letterPairs is the fixed set of (given-name initial, family-name initial)
// constraints used in the game, in the order they are announced to players.
var letterPairs = []string{"צנ", "תד", "קכ", "עג", "יח", "לט", "מץ", "רס", "סו", "טר"}

func validLetterPair(pair string) bool {
	for _, p := range letterPairs {
		if p == pair {
			return true
		}
	}
	return false
}

// splitName trims a submitted name and splits it on whitespace. The first
// token is the given name and the last token is the family name; middle
// tokens are kept in display but ignored for matching.
func splitName(name string) (first, last string, ok bool) {
	parts := strings.Fields(name)
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], parts[len(parts)-1], true
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

// validateName runs the structural and letter-pair checks that never touch
// the oracle. It returns nil when the name passes, or a terminal Invalid
// verification describing which check failed.
func validateName(name, pair string) *Verification {
	first, last, ok := splitName(name)
	if !ok {
		return &Verification{
			Status: StatusInvalid,
			Reason: "must contain a given name and a family name",
		}
	}

	if !validLetterPair(pair) {
		return &Verification{
			Status: StatusInvalid,
			Reason: fmt.Sprintf("letter pair %q is not recognized; valid pairs are %s", pair, strings.Join(letterPairs, ", ")),
		}
	}

	pairRunes := []rune(pair)
	firstLetter, lastLetter := pairRunes[0], pairRunes[1]

	if firstRune(first) != firstLetter || firstRune(last) != lastLetter {
		return &Verification{
			Status: StatusInvalid,
			Reason: fmt.Sprintf("given name must start with %c and family name with %c (got %c and %c)",
				firstLetter, lastLetter, firstRune(first), firstRune(last)),
		}
	}

	return nil
}
