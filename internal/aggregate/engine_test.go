package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasworkforce/labor-intel/internal/arithmetic"
	"github.com/atlasworkforce/labor-intel/internal/config"
	"github.com/atlasworkforce/labor-intel/internal/dataset"
	"github.com/atlasworkforce/labor-intel/internal/patterns"
)

func wage(v float64) *float64 { return &v }

func testMatcher() *patterns.Matcher {
	store := patterns.NewStore([]*patterns.Category{{
		Name:        "document_creation",
		DisplayName: "Document Creation",
		ActionVerbs: patterns.TierList{
			Primary: []string{"write", "draft", "prepare"},
			Exclude: []string{"read", "review"},
		},
		ObjectKeywords: patterns.TierList{
			Primary: []string{"report", "document", "memo"},
		},
		Matching: patterns.MatchingConfig{
			Strategy:      patterns.StrategyVerbObject,
			MinConfidence: 0.5,
		},
	}}, nil)
	return patterns.NewMatcher(store, nil)
}

func testEngine(records []dataset.Record) *Engine {
	v := arithmetic.NewValidator(config.DefaultConfig().Analysis.Tolerances, nil)
	return NewEngine(dataset.NewTable(records), v, testMatcher(), nil)
}

func TestOccupationSummariesDeduplicatesPairs(t *testing.T) {
	// Three task rows for the same pair must contribute employment once.
	e := testEngine([]dataset.Record{
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft reports", Employment: 100, Wage: wage(40), HoursPerWeek: 10},
		{Occupation: "Accountants", Industry: "Finance", Task: "Audit accounts", Employment: 100, Wage: wage(40), HoursPerWeek: 5},
		{Occupation: "Accountants", Industry: "Finance", Task: "File taxes", Employment: 100, Wage: wage(40), HoursPerWeek: 3},
	})

	out := e.OccupationSummaries()
	require.Len(t, out, 1)
	assert.InDelta(t, 100, out[0].Employment, 1e-9)
	assert.Equal(t, 1, out[0].Industries)

	ledger, ok := e.validator.Lookup(arithmetic.OpSum, "employment across occupations")
	require.True(t, ok)
	assert.InDelta(t, 100, ledger.Value, 1e-9)
}

func TestOccupationSummariesSortedByEmployment(t *testing.T) {
	e := testEngine([]dataset.Record{
		{Occupation: "Paralegals", Industry: "Legal", Task: "Draft documents", Employment: 50, Wage: wage(25)},
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft reports", Employment: 200, Wage: wage(40)},
		{Occupation: "Accountants", Industry: "Manufacturing", Task: "Draft reports", Employment: 100, Wage: wage(36)},
	})

	out := e.OccupationSummaries()
	require.Len(t, out, 2)
	assert.Equal(t, "Accountants", out[0].Occupation)
	assert.InDelta(t, 300, out[0].Employment, 1e-9)
	assert.Equal(t, 2, out[0].Industries)
	require.NotNil(t, out[0].AvgWage)
	assert.InDelta(t, 38, *out[0].AvgWage, 1e-9)
}

func TestIndustrySummaries(t *testing.T) {
	e := testEngine([]dataset.Record{
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft reports", Employment: 200, Wage: wage(40)},
		{Occupation: "Paralegals", Industry: "Finance", Task: "Draft documents", Employment: 100, Wage: wage(30)},
		{Occupation: "Welders", Industry: "Manufacturing", Task: "Weld joints", Employment: 500},
	})

	out := e.IndustrySummaries()
	require.Len(t, out, 2)
	assert.Equal(t, "Manufacturing", out[0].Industry)
	assert.Nil(t, out[0].AvgWage)
	assert.Equal(t, "Finance", out[1].Industry)
	assert.InDelta(t, 300, out[1].Employment, 1e-9)
	assert.Equal(t, 2, out[1].Occupations)
	require.NotNil(t, out[1].AvgWage)
	assert.InDelta(t, 35, *out[1].AvgWage, 1e-9)
}

func TestIndustryProportionsKeepsZeroMatchIndustries(t *testing.T) {
	e := testEngine([]dataset.Record{
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft quarterly reports", Employment: 300},
		{Occupation: "Accountants", Industry: "Finance", Task: "Audit accounts", Employment: 300},
		{Occupation: "Welders", Industry: "Manufacturing", Task: "Weld structural joints", Employment: 700},
	})

	out := e.IndustryProportions("document_creation")
	require.Len(t, out, 2)

	assert.Equal(t, "Finance", out[0].Industry)
	assert.InDelta(t, 100, out[0].Proportion, 1e-9)
	assert.InDelta(t, 300, out[0].MatchingEmployment, 1e-9)

	assert.Equal(t, "Manufacturing", out[1].Industry)
	assert.Zero(t, out[1].Proportion)
	assert.InDelta(t, 700, out[1].TotalEmployment, 1e-9)
}

func TestTaskDetails(t *testing.T) {
	e := testEngine([]dataset.Record{
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft quarterly reports", HoursPerWeek: 12, Employment: 100},
		{Occupation: "Accountants", Industry: "Manufacturing", Task: "Draft quarterly reports", HoursPerWeek: 12, Employment: 50},
		{Occupation: "Accountants", Industry: "Finance", Task: "Write memos", HoursPerWeek: 4, Employment: 100},
		{Occupation: "Paralegals", Industry: "Legal", Task: "Draft legal documents", HoursPerWeek: 15, Employment: 80},
		{Occupation: "Paralegals", Industry: "Legal", Task: "Review legal documents", HoursPerWeek: 20, Employment: 80},
	})

	out := e.TaskDetails("document_creation", 5, 100)
	require.Len(t, out, 3)

	// Sorted by hours descending; the excluded-term task never appears.
	assert.Equal(t, "Draft legal documents", out[0].Task)
	assert.Equal(t, "Draft quarterly reports", out[1].Task)
	assert.Equal(t, 2, out[1].Industries)
	assert.Equal(t, "Write memos", out[2].Task)
}

func TestTaskDetailsPerOccupationLimit(t *testing.T) {
	records := []dataset.Record{
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft annual reports", HoursPerWeek: 9},
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft quarterly reports", HoursPerWeek: 8},
		{Occupation: "Accountants", Industry: "Finance", Task: "Write board memos", HoursPerWeek: 7},
	}
	e := testEngine(records)

	out := e.TaskDetails("document_creation", 2, 100)
	require.Len(t, out, 2)
	assert.Equal(t, "Draft annual reports", out[0].Task)
}

func TestTimeAndWageStats(t *testing.T) {
	e := testEngine([]dataset.Record{
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft reports", HoursPerWeek: 10, Employment: 100, Wage: wage(40)},
		{Occupation: "Accountants", Industry: "Finance", Task: "Audit accounts", HoursPerWeek: 20, Employment: 100, Wage: wage(40)},
		{Occupation: "Welders", Industry: "Manufacturing", Task: "Weld joints", HoursPerWeek: 30, Employment: 500, Wage: wage(28)},
	})

	ts := e.TimeStats()
	require.NotNil(t, ts)
	assert.InDelta(t, 20, ts.Mean, 1e-9)
	assert.InDelta(t, 10, ts.Min, 1e-9)
	assert.InDelta(t, 30, ts.Max, 1e-9)
	assert.Equal(t, 3, ts.Count)

	// Wage stats run over unique pairs: 40 appears once, not twice.
	ws := e.WageStats()
	require.NotNil(t, ws)
	assert.Equal(t, 2, ws.Count)
	assert.InDelta(t, 34, ws.Mean, 1e-9)
}

func TestPatternOccupationAnalysis(t *testing.T) {
	e := testEngine([]dataset.Record{
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft quarterly reports", Employment: 100},
		{Occupation: "Accountants", Industry: "Finance", Task: "Audit accounts", Employment: 100},
		{Occupation: "Welders", Industry: "Manufacturing", Task: "Weld joints", Employment: 500},
	})

	out := e.PatternOccupationAnalysis("document_creation")
	require.Len(t, out, 1)
	assert.Equal(t, "Accountants", out[0].Occupation)
	assert.Equal(t, 1, out[0].MatchingTasks)
	assert.Equal(t, 2, out[0].TotalTasks)
	assert.InDelta(t, 50, out[0].Share, 1e-9)
	assert.InDelta(t, 100, out[0].Employment, 1e-9)
}

func TestCounts(t *testing.T) {
	e := testEngine([]dataset.Record{
		{Occupation: "Accountants", Industry: "Finance", Task: "Draft reports"},
		{Occupation: "Accountants", Industry: "Manufacturing", Task: "Draft reports"},
		{Occupation: "Welders", Industry: "Manufacturing", Task: "Weld joints"},
	})

	counts := e.Counts()
	assert.InDelta(t, 3, counts["task_rows"], 1e-9)
	assert.InDelta(t, 2, counts["occupations"], 1e-9)
	assert.InDelta(t, 2, counts["industries"], 1e-9)
	assert.InDelta(t, 2, counts["unique_tasks"], 1e-9)
}

func TestTopN(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Len(t, TopN(items, 3), 3)
	assert.Len(t, TopN(items, 0), 5)
	assert.Len(t, TopN(items, 10), 5)
}

func TestMerge(t *testing.T) {
	generic := &Results{
		Counts: map[string]float64{"task_rows": 100, "occupations": 10},
		Time:   &TimeStats{Mean: 5},
	}
	specific := &Results{
		Counts:      map[string]float64{"occupations": 7},
		Occupations: []OccupationSummary{{Occupation: "Accountants"}},
	}

	merged := Merge(nil, generic, specific)
	assert.InDelta(t, 100, merged.Counts["task_rows"], 1e-9)
	assert.InDelta(t, 7, merged.Counts["occupations"], 1e-9)
	assert.Len(t, merged.Occupations, 1)
	assert.NotNil(t, merged.Time)
	assert.False(t, merged.Empty())
	assert.True(t, (&Results{}).Empty())
}
