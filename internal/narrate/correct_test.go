package narrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrectTotalsReplacesWrongTotal(t *testing.T) {
	answer := "The sector is large.\n\nTotal Employment: 800 thousand workers in this view."

	out, changed := CorrectTotals(answer, 600.5, 3, "occupations", nil)

	assert.True(t, changed)
	assert.Contains(t, out, "Total Employment: 600.50 thousand workers across 3 occupations")
	assert.NotContains(t, out, "800 thousand")
	assert.Contains(t, out, "The sector is large.")
}

func TestCorrectTotalsLeavesMatchingTotalAlone(t *testing.T) {
	answer := "Total Employment: 600.50 thousand workers across 3 occupations."

	out, changed := CorrectTotals(answer, 600.5, 3, "occupations", nil)

	assert.False(t, changed)
	assert.Equal(t, answer, out)
}

func TestCorrectTotalsToleratesRounding(t *testing.T) {
	// 600.9 vs 601 is under the 0.1% threshold
	answer := "Total Employment: 600.9 thousand workers"

	out, changed := CorrectTotals(answer, 601, 3, "occupations", nil)

	assert.False(t, changed)
	assert.Equal(t, answer, out)
}

func TestCorrectTotalsAppendsWhenMissing(t *testing.T) {
	answer := "Several occupations involve drafting reports."

	out, changed := CorrectTotals(answer, 1500.25, 12, "industries", nil)

	assert.True(t, changed)
	assert.Contains(t, out, answer)
	assert.Contains(t, out, "**Total Employment: 1,500.25 thousand workers across 12 industries**")
}

func TestCorrectTotalsShortForms(t *testing.T) {
	tests := []struct {
		name   string
		answer string
	}{
		{"total_k", "Total: 900k across the dataset."},
		{"thousand_only", "Total Employment: **900.00 thousand**."},
		{"total_workers", "Total: 900 thousand workers."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, changed := CorrectTotals(tc.answer, 600, 3, "occupations", nil)

			assert.True(t, changed)
			assert.Contains(t, out, "Total Employment: 600.00 thousand workers across 3 occupations")
			assert.NotContains(t, out, "900")
		})
	}
}

func TestCorrectTotalsSkipsWithoutGroundTruth(t *testing.T) {
	answer := "Total Employment: 800 thousand workers"

	out, changed := CorrectTotals(answer, 0, 3, "occupations", nil)

	assert.False(t, changed)
	assert.Equal(t, answer, out)
}
