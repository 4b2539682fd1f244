package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasworkforce/labor-intel/internal/dataset"
)

func TestSavingsFractionFromQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  float64
	}{
		{"default", "how much could we save", 0.4},
		{"half", "if half the writing time were automated", 0.5},
		{"quarter", "automating a quarter of report drafting", 0.25},
		{"explicit percent", "suppose 30% of the time is saved", 0.3},
		{"percent word", "assume 25 percent automation", 0.25},
		{"nonsense percent ignored", "a 250% improvement", 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, SavingsFractionFromQuery(tt.query, 0.4), 1e-9)
		})
	}
}

func TestSavings(t *testing.T) {
	e := testEngine([]dataset.Record{
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft quarterly reports", Employment: 100, Wage: wage(40), HoursPerWeek: 10},
		{Occupation: "Welders", Industry: "Manufacturing", Task: "Weld joints", Employment: 500, Wage: wage(28), HoursPerWeek: 30},
	})

	proj := e.Savings("document_creation", 0.4)
	require.NotNil(t, proj)
	require.Len(t, proj.Rows, 1)

	row := proj.Rows[0]
	assert.Equal(t, "Accountants", row.Occupation)
	assert.InDelta(t, 10, row.AvgHoursPerWeek, 1e-9)
	assert.InDelta(t, 4, row.TimeSavedHours, 1e-9)
	// 100 thousand workers x 4 hours = 400,000 hours per week.
	assert.InDelta(t, 400000, row.HoursSavedWeekly, 1e-6)
	require.NotNil(t, row.DollarsWeekly)
	assert.InDelta(t, 16000000, *row.DollarsWeekly, 1e-3)
	require.NotNil(t, row.DollarsAnnual)
	assert.InDelta(t, 16000000*52, *row.DollarsAnnual, 1e-3)

	assert.InDelta(t, 400000, proj.TotalHoursWeekly, 1e-6)
	require.NotNil(t, proj.TotalDollarsWeekly)
	assert.InDelta(t, 16000000, *proj.TotalDollarsWeekly, 1e-3)
}

func TestSavingsNilWageStaysNil(t *testing.T) {
	e := testEngine([]dataset.Record{
		{Occupation: "Clerks", Industry: "Retail", Task: "Prepare inventory reports", Employment: 50, HoursPerWeek: 8},
	})

	proj := e.Savings("document_creation", 0.5)
	require.Len(t, proj.Rows, 1)
	row := proj.Rows[0]
	assert.InDelta(t, 4, row.TimeSavedHours, 1e-9)
	assert.Nil(t, row.DollarsWeekly)
	assert.Nil(t, row.DollarsAnnual)
	assert.Nil(t, proj.TotalDollarsWeekly)
}

func TestSavingsEmptyMatch(t *testing.T) {
	e := testEngine([]dataset.Record{
		{Occupation: "Welders", Industry: "Manufacturing", Task: "Weld joints", Employment: 500, HoursPerWeek: 30},
	})

	proj := e.Savings("document_creation", 0.4)
	require.NotNil(t, proj)
	assert.Empty(t, proj.Rows)
	assert.Zero(t, proj.TotalHoursWeekly)
}
