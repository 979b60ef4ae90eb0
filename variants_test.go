package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenVariantsAppliesSubstitutionRules(t *testing.T) {
	variants := tokenVariants("יוסי")

	// Original spelling first, then doubled vav, then doubled yod.
	assert.Equal(t, []string{"יוסי", "יווסי", "ייוסיי"}, variants)
}

func TestTokenVariantsGereshForms(t *testing.T) {
	variants := tokenVariants("ג'ורג'")

	assert.Equal(t, "ג'ורג'", variants[0])
	assert.Contains(t, variants, "ג׳ורג׳")
	assert.Contains(t, variants, "גורג")
}

func TestTokenVariantsNoMatchingRules(t *testing.T) {
	assert.Equal(t, []string{"דן"}, tokenVariants("דן"))
}

func TestNameVariantsLiteralFormFirst(t *testing.T) {
	variants := nameVariants("דן", "לוי")

	require.NotEmpty(t, variants)
	assert.Equal(t, "דן לוי", variants[0])
	assert.Equal(t, []string{"דן לוי", "דן לווי", "דן לויי"}, variants)
}

func TestNameVariantsCapped(t *testing.T) {
	// Both tokens expand heavily, so the cross product would exceed the cap.
	variants := nameVariants("ג'וליאן", "אוליביה")

	assert.LessOrEqual(t, len(variants), maxVariants)
	assert.Equal(t, "ג'וליאן אוליביה", variants[0])

	seen := make(map[string]bool)
	for _, v := range variants {
		assert.False(t, seen[v], "variant %q duplicated", v)
		seen[v] = true
	}
}
