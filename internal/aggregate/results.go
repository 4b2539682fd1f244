package aggregate

// Results carries the outputs of one computational pass. Generic maps hold
// loose named figures; typed fields hold structured analyses. Fields left
// nil or empty were not computed for the query.
type Results struct {
	Counts      map[string]float64
	Totals      map[string]float64
	Averages    map[string]float64
	Percentages map[string]float64

	Occupations     []OccupationSummary
	Industries      []IndustrySummary
	Proportions     []IndustryProportion
	Tasks           []TaskDetail
	PatternAnalysis []OccupationPatternStat
	Time            *TimeStats
	Wages           *WageStats
	Savings         *SavingsProjection
}

// Empty reports whether nothing was computed.
func (r *Results) Empty() bool {
	if r == nil {
		return true
	}
	return len(r.Counts) == 0 && len(r.Totals) == 0 && len(r.Averages) == 0 &&
		len(r.Percentages) == 0 && len(r.Occupations) == 0 && len(r.Industries) == 0 &&
		len(r.Proportions) == 0 && len(r.Tasks) == 0 && len(r.PatternAnalysis) == 0 &&
		r.Time == nil && r.Wages == nil && r.Savings == nil
}

// Merge folds src into dst. Later sources take precedence: map entries from
// src overwrite dst per key, and non-empty structured fields from src
// replace dst's. Callers pass sources in ascending provenance rank, generic
// results first and query-specific results last.
func Merge(dst *Results, sources ...*Results) *Results {
	if dst == nil {
		dst = &Results{}
	}
	for _, src := range sources {
		if src == nil {
			continue
		}
		dst.Counts = mergeMap(dst.Counts, src.Counts)
		dst.Totals = mergeMap(dst.Totals, src.Totals)
		dst.Averages = mergeMap(dst.Averages, src.Averages)
		dst.Percentages = mergeMap(dst.Percentages, src.Percentages)

		if len(src.Occupations) > 0 {
			dst.Occupations = src.Occupations
		}
		if len(src.Industries) > 0 {
			dst.Industries = src.Industries
		}
		if len(src.Proportions) > 0 {
			dst.Proportions = src.Proportions
		}
		if len(src.Tasks) > 0 {
			dst.Tasks = src.Tasks
		}
		if len(src.PatternAnalysis) > 0 {
			dst.PatternAnalysis = src.PatternAnalysis
		}
		if src.Time != nil {
			dst.Time = src.Time
		}
		if src.Wages != nil {
			dst.Wages = src.Wages
		}
		if src.Savings != nil {
			dst.Savings = src.Savings
		}
	}
	return dst
}

func mergeMap(dst, src map[string]float64) map[string]float64 {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]float64, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
