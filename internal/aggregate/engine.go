// Package aggregate computes de-duplication-aware statistics over the
// workforce task table.
//
// The dataset repeats each (occupation, industry) pair once per task, so
// employment and wage figures must be collapsed to unique pairs before any
// sum or mean. Task-level metrics like hours per week are aggregated over
// raw rows. All numeric outputs are recorded through the arithmetic
// validator so narration can be checked against them later.
package aggregate

import (
	"sort"

	"github.com/atlasworkforce/labor-intel/internal/arithmetic"
	"github.com/atlasworkforce/labor-intel/internal/dataset"
	"github.com/atlasworkforce/labor-intel/internal/observability"
	"github.com/atlasworkforce/labor-intel/internal/patterns"
)

// Default bounds for task detail listings.
const (
	DefaultTasksPerOccupation = 5
	DefaultTaskDetailCap      = 100
)

// OccupationSummary aggregates one occupation across industries.
type OccupationSummary struct {
	Occupation string
	Employment float64 // thousands, pair-deduplicated
	AvgWage    *float64
	Industries int
}

// IndustrySummary aggregates one industry across occupations.
type IndustrySummary struct {
	Industry    string
	Employment  float64 // thousands, pair-deduplicated
	AvgWage     *float64
	Occupations int
}

// IndustryProportion is an industry's share of workers on matching tasks.
type IndustryProportion struct {
	Industry           string
	TotalEmployment    float64
	MatchingEmployment float64
	Proportion         float64 // percent
}

// TaskDetail is one task deduplicated by (task, occupation).
type TaskDetail struct {
	Task         string
	Occupation   string
	Industries   int
	HoursPerWeek float64
}

// TimeStats summarizes hours-per-week over task rows.
type TimeStats struct {
	Mean  float64
	Min   float64
	Max   float64
	Count int
}

// WageStats summarizes hourly wages over unique pairs with known wages.
type WageStats struct {
	Mean  float64
	Min   float64
	Max   float64
	Count int
}

// OccupationPatternStat is one occupation's involvement with a category.
type OccupationPatternStat struct {
	Occupation    string
	MatchingTasks int
	TotalTasks    int
	Share         float64 // percent of the occupation's tasks that match
	Employment    float64 // thousands, pair-deduplicated
}

// Engine computes aggregations over one table, recording ground truth in
// the validator.
type Engine struct {
	table     *dataset.Table
	validator *arithmetic.Validator
	matcher   *patterns.Matcher
	log       *observability.Logger
}

// NewEngine creates an aggregation engine. The matcher may be nil when no
// category filtering is needed.
func NewEngine(table *dataset.Table, validator *arithmetic.Validator, matcher *patterns.Matcher, log *observability.Logger) *Engine {
	if log == nil {
		log = observability.DefaultLogger()
	}
	return &Engine{table: table, validator: validator, matcher: matcher, log: log}
}

// Table returns the engine's underlying table.
func (e *Engine) Table() *dataset.Table {
	return e.table
}

// WithTable returns an engine over a different table sharing the same
// validator and matcher.
func (e *Engine) WithTable(table *dataset.Table) *Engine {
	return &Engine{table: table, validator: e.validator, matcher: e.matcher, log: e.log}
}

// MatchingTable returns the sub-table of rows whose task matches the
// category. Without a matcher or category it returns the full table.
func (e *Engine) MatchingTable(category string) *dataset.Table {
	if e.matcher == nil || category == "" {
		return e.table
	}
	tasks := make([]string, len(e.table.Records))
	for i, rec := range e.table.Records {
		tasks[i] = rec.Task
	}
	return e.table.Filter(e.matcher.FilterIndexes(tasks, category))
}

// Counts records the basic dataset counts in the validator ledger and
// returns them keyed by name.
func (e *Engine) Counts() map[string]float64 {
	rows := e.validator.Count(e.table.Len(), "task rows")
	occs := e.validator.Count(len(e.table.Occupations()), "occupations")
	inds := e.validator.Count(len(e.table.Industries()), "industries")

	uniqueTasks := make(map[string]bool)
	for _, rec := range e.table.Records {
		if rec.Task != "" {
			uniqueTasks[rec.Task] = true
		}
	}
	tasks := e.validator.Count(len(uniqueTasks), "unique tasks")

	return map[string]float64{
		"task_rows":    rows.Value,
		"occupations":  occs.Value,
		"industries":   inds.Value,
		"unique_tasks": tasks.Value,
	}
}

// Totals records pair-deduplicated total employment and summed task hours
// in the validator ledger and returns them keyed by name.
func (e *Engine) Totals() map[string]float64 {
	totals := make(map[string]float64)

	if e.table.HasColumn(dataset.ColEmployment) {
		var employment []float64
		for _, pair := range e.table.UniquePairs() {
			employment = append(employment, pair.Employment)
		}
		total := e.validator.Sum(employment, "total employment", arithmetic.UnitThousands)
		totals["total_employment"] = total.Value
	}

	if e.table.HasColumn(dataset.ColHoursPerWeek) {
		var hours []float64
		for _, rec := range e.table.Records {
			hours = append(hours, rec.HoursPerWeek)
		}
		total := e.validator.Sum(hours, "total task hours", "")
		totals["total_task_hours"] = total.Value
	}

	return totals
}

// Averages records mean employment, wage, and task hours in the validator
// ledger and returns them keyed by name. Employment and wage average over
// unique pairs; hours average over task rows.
func (e *Engine) Averages() map[string]float64 {
	averages := make(map[string]float64)
	pairs := e.table.UniquePairs()

	if e.table.HasColumn(dataset.ColEmployment) {
		var employment []float64
		for _, pair := range pairs {
			employment = append(employment, pair.Employment)
		}
		avg := e.validator.Average(employment, "average employment", arithmetic.UnitThousands)
		averages["avg_employment"] = avg.Value
	}

	if e.table.HasColumn(dataset.ColWage) {
		var wages []float64
		for _, pair := range pairs {
			if pair.Wage != nil {
				wages = append(wages, *pair.Wage)
			}
		}
		avg := e.validator.Average(wages, "average hourly wage", "")
		averages["avg_hourly_wage"] = avg.Value
	}

	if e.table.HasColumn(dataset.ColHoursPerWeek) {
		var hours []float64
		for _, rec := range e.table.Records {
			hours = append(hours, rec.HoursPerWeek)
		}
		avg := e.validator.Average(hours, "average task hours", "")
		averages["avg_task_hours"] = avg.Value
	}

	return averages
}

// OccupationSummaries collapses to unique pairs, then aggregates employment
// and wages per occupation, sorted by employment descending.
func (e *Engine) OccupationSummaries() []OccupationSummary {
	if !e.table.HasColumn(dataset.ColEmployment) {
		e.log.Warn().Msg("employment column missing, skipping occupation summaries")
		return nil
	}

	type acc struct {
		employment float64
		wageSum    float64
		wageCount  int
		industries map[string]bool
	}
	byOcc := make(map[string]*acc)
	var order []string

	for _, pair := range e.table.UniquePairs() {
		a, ok := byOcc[pair.Occupation]
		if !ok {
			a = &acc{industries: make(map[string]bool)}
			byOcc[pair.Occupation] = a
			order = append(order, pair.Occupation)
		}
		a.employment += pair.Employment
		a.industries[pair.Industry] = true
		if pair.Wage != nil {
			a.wageSum += *pair.Wage
			a.wageCount++
		}
	}

	out := make([]OccupationSummary, 0, len(order))
	var employments []float64
	for _, occ := range order {
		a := byOcc[occ]
		s := OccupationSummary{
			Occupation: occ,
			Employment: a.employment,
			Industries: len(a.industries),
		}
		if a.wageCount > 0 {
			w := a.wageSum / float64(a.wageCount)
			s.AvgWage = &w
		}
		out = append(out, s)
		employments = append(employments, a.employment)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Employment > out[j].Employment })
	e.validator.Sum(employments, "employment across occupations", arithmetic.UnitThousands)
	e.validator.Count(len(out), "occupations with employment")
	return out
}

// IndustrySummaries collapses to unique pairs, then aggregates employment
// and wages per industry, sorted by employment descending.
func (e *Engine) IndustrySummaries() []IndustrySummary {
	if !e.table.HasColumn(dataset.ColEmployment) {
		e.log.Warn().Msg("employment column missing, skipping industry summaries")
		return nil
	}

	type acc struct {
		employment  float64
		wageSum     float64
		wageCount   int
		occupations map[string]bool
	}
	byInd := make(map[string]*acc)
	var order []string

	for _, pair := range e.table.UniquePairs() {
		a, ok := byInd[pair.Industry]
		if !ok {
			a = &acc{occupations: make(map[string]bool)}
			byInd[pair.Industry] = a
			order = append(order, pair.Industry)
		}
		a.employment += pair.Employment
		a.occupations[pair.Occupation] = true
		if pair.Wage != nil {
			a.wageSum += *pair.Wage
			a.wageCount++
		}
	}

	out := make([]IndustrySummary, 0, len(order))
	var employments []float64
	for _, ind := range order {
		a := byInd[ind]
		s := IndustrySummary{
			Industry:    ind,
			Employment:  a.employment,
			Occupations: len(a.occupations),
		}
		if a.wageCount > 0 {
			w := a.wageSum / float64(a.wageCount)
			s.AvgWage = &w
		}
		out = append(out, s)
		employments = append(employments, a.employment)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Employment > out[j].Employment })
	e.validator.Sum(employments, "employment across industries", arithmetic.UnitThousands)
	e.validator.Count(len(out), "industries with employment")
	return out
}

// IndustryProportions computes, per industry, the share of pair-level
// employment on tasks matching the category. Industries with no matching
// tasks are kept at zero percent. Sorted by proportion descending.
func (e *Engine) IndustryProportions(category string) []IndustryProportion {
	if !e.table.HasColumn(dataset.ColEmployment) {
		e.log.Warn().Msg("employment column missing, skipping industry proportions")
		return nil
	}

	matching := e.MatchingTable(category)

	totals := pairEmploymentByIndustry(e.table)
	matched := pairEmploymentByIndustry(matching)

	out := make([]IndustryProportion, 0, len(totals.order))
	for _, ind := range totals.order {
		p := IndustryProportion{
			Industry:           ind,
			TotalEmployment:    totals.employment[ind],
			MatchingEmployment: matched.employment[ind],
		}
		if p.TotalEmployment > 0 {
			p.Proportion = p.MatchingEmployment / p.TotalEmployment * 100
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Proportion > out[j].Proportion })
	return out
}

// TaskDetails lists matching tasks deduplicated by (task, occupation),
// counting the industries each spans, limited per occupation and overall,
// sorted by hours per week descending.
func (e *Engine) TaskDetails(category string, perOccupation, limit int) []TaskDetail {
	if perOccupation <= 0 {
		perOccupation = DefaultTasksPerOccupation
	}
	if limit <= 0 {
		limit = DefaultTaskDetailCap
	}

	matching := e.MatchingTable(category)

	type key struct{ task, occupation string }
	type acc struct {
		industries map[string]bool
		hours      float64
	}
	byKey := make(map[key]*acc)
	var order []key

	for _, rec := range matching.Records {
		if rec.Task == "" {
			continue
		}
		k := key{task: rec.Task, occupation: rec.Occupation}
		a, ok := byKey[k]
		if !ok {
			a = &acc{industries: make(map[string]bool), hours: rec.HoursPerWeek}
			byKey[k] = a
			order = append(order, k)
		}
		a.industries[rec.Industry] = true
	}

	details := make([]TaskDetail, 0, len(order))
	for _, k := range order {
		a := byKey[k]
		details = append(details, TaskDetail{
			Task:         k.task,
			Occupation:   k.occupation,
			Industries:   len(a.industries),
			HoursPerWeek: a.hours,
		})
	}

	sort.SliceStable(details, func(i, j int) bool {
		return details[i].HoursPerWeek > details[j].HoursPerWeek
	})

	perOcc := make(map[string]int)
	out := make([]TaskDetail, 0, len(details))
	for _, d := range details {
		if perOcc[d.Occupation] >= perOccupation {
			continue
		}
		perOcc[d.Occupation]++
		out = append(out, d)
		if len(out) >= limit {
			break
		}
	}

	e.validator.Count(len(out), "task details listed")
	return out
}

// TimeStats summarizes hours per week over task rows. Hours is a task
// metric, so no pair collapse applies.
func (e *Engine) TimeStats() *TimeStats {
	if !e.table.HasColumn(dataset.ColHoursPerWeek) {
		e.log.Warn().Msg("hours column missing, skipping time stats")
		return nil
	}

	var hours []float64
	for _, rec := range e.table.Records {
		hours = append(hours, rec.HoursPerWeek)
	}
	if len(hours) == 0 {
		return &TimeStats{}
	}

	mean := e.validator.Average(hours, "hours per week on task", "")
	lo, hi := e.validator.MinMax(hours, "hours per week on task", "")
	return &TimeStats{Mean: mean.Value, Min: lo.Value, Max: hi.Value, Count: len(hours)}
}

// WageStats summarizes hourly wages over unique pairs with known wages.
func (e *Engine) WageStats() *WageStats {
	if !e.table.HasColumn(dataset.ColWage) {
		e.log.Warn().Msg("wage column missing, skipping wage stats")
		return nil
	}

	var wages []float64
	for _, pair := range e.table.UniquePairs() {
		if pair.Wage != nil {
			wages = append(wages, *pair.Wage)
		}
	}
	if len(wages) == 0 {
		return &WageStats{}
	}

	mean := e.validator.Average(wages, "hourly wage", "")
	lo, hi := e.validator.MinMax(wages, "hourly wage", "")
	return &WageStats{Mean: mean.Value, Min: lo.Value, Max: hi.Value, Count: len(wages)}
}

// PatternOccupationAnalysis reports, per occupation, how many of its tasks
// match the category, with pair-deduplicated employment. Occupations with
// no matching tasks are omitted. Sorted by matching share descending.
func (e *Engine) PatternOccupationAnalysis(category string) []OccupationPatternStat {
	if e.matcher == nil || category == "" {
		return nil
	}

	type acc struct {
		matching int
		total    int
	}
	byOcc := make(map[string]*acc)
	var order []string

	for _, rec := range e.table.Records {
		a, ok := byOcc[rec.Occupation]
		if !ok {
			a = &acc{}
			byOcc[rec.Occupation] = a
			order = append(order, rec.Occupation)
		}
		a.total++
		if e.matcher.MatchTask(rec.Task, category).Matched {
			a.matching++
		}
	}

	employment := make(map[string]float64)
	for _, pair := range e.table.UniquePairs() {
		employment[pair.Occupation] += pair.Employment
	}

	out := make([]OccupationPatternStat, 0, len(order))
	for _, occ := range order {
		a := byOcc[occ]
		if a.matching == 0 {
			continue
		}
		out = append(out, OccupationPatternStat{
			Occupation:    occ,
			MatchingTasks: a.matching,
			TotalTasks:    a.total,
			Share:         float64(a.matching) / float64(a.total) * 100,
			Employment:    employment[occ],
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Share > out[j].Share })
	e.validator.Count(len(out), "occupations with matching tasks")
	return out
}

// TopN truncates a summary slice to its first n entries.
func TopN[T any](items []T, n int) []T {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}

type industryEmployment struct {
	employment map[string]float64
	order      []string
}

func pairEmploymentByIndustry(t *dataset.Table) industryEmployment {
	out := industryEmployment{employment: make(map[string]float64)}
	for _, pair := range t.UniquePairs() {
		if _, ok := out.employment[pair.Industry]; !ok {
			out.order = append(out.order, pair.Industry)
		}
		out.employment[pair.Industry] += pair.Employment
	}
	return out
}
