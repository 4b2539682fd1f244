package aggregate

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// SavingsRow projects time and wage savings for one occupation.
type SavingsRow struct {
	Occupation       string
	Employment       float64  // thousands
	AvgHoursPerWeek  float64  // mean hours/week on matching tasks
	TimeSavedHours   float64  // per worker per week
	HoursSavedWeekly float64  // across all workers
	DollarsWeekly    *float64 // nil when wage unknown
	DollarsAnnual    *float64
}

// SavingsProjection is the full automation-savings estimate.
type SavingsProjection struct {
	Fraction           float64
	Rows               []SavingsRow
	TotalHoursWeekly   float64
	TotalDollarsWeekly *float64
	TotalDollarsAnnual *float64
}

var percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:%|percent)`)

// SavingsFractionFromQuery extracts a savings fraction from query phrasing,
// falling back to the configured default.
func SavingsFractionFromQuery(query string, fallback float64) float64 {
	q := strings.ToLower(query)

	if m := percentRe.FindStringSubmatch(q); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 && v <= 100 {
			return v / 100
		}
	}
	if strings.Contains(q, "half") {
		return 0.5
	}
	if strings.Contains(q, "quarter") {
		return 0.25
	}
	if strings.Contains(q, "third") {
		return 1.0 / 3.0
	}
	return fallback
}

// Savings projects, per occupation, the hours and dollars saved if the
// given fraction of time on matching tasks were automated. Dollar figures
// stay nil for occupations without a known wage rather than reporting zero.
func (e *Engine) Savings(category string, fraction float64) *SavingsProjection {
	matching := e.MatchingTable(category)
	if matching.Len() == 0 {
		return &SavingsProjection{Fraction: fraction}
	}

	type acc struct {
		hoursSum  float64
		taskRows  int
		wageSum   float64
		wageCount int
	}
	byOcc := make(map[string]*acc)
	var order []string

	for _, rec := range matching.Records {
		a, ok := byOcc[rec.Occupation]
		if !ok {
			a = &acc{}
			byOcc[rec.Occupation] = a
			order = append(order, rec.Occupation)
		}
		a.hoursSum += rec.HoursPerWeek
		a.taskRows++
	}

	employment := make(map[string]float64)
	for _, pair := range matching.UniquePairs() {
		employment[pair.Occupation] += pair.Employment
		if pair.Wage != nil {
			byOcc[pair.Occupation].wageSum += *pair.Wage
			byOcc[pair.Occupation].wageCount++
		}
	}

	proj := &SavingsProjection{Fraction: fraction}
	var hoursTotals, dollarTotals []float64

	for _, occ := range order {
		a := byOcc[occ]
		row := SavingsRow{
			Occupation:      occ,
			Employment:      employment[occ],
			AvgHoursPerWeek: a.hoursSum / float64(a.taskRows),
		}
		row.TimeSavedHours = row.AvgHoursPerWeek * fraction
		row.HoursSavedWeekly = row.Employment * row.TimeSavedHours * 1000

		if a.wageCount > 0 {
			wage := a.wageSum / float64(a.wageCount)
			weekly := row.HoursSavedWeekly * wage
			annual := weekly * 52
			row.DollarsWeekly = &weekly
			row.DollarsAnnual = &annual
			dollarTotals = append(dollarTotals, weekly)
		}

		hoursTotals = append(hoursTotals, row.HoursSavedWeekly)
		proj.Rows = append(proj.Rows, row)
	}

	sort.SliceStable(proj.Rows, func(i, j int) bool {
		return proj.Rows[i].HoursSavedWeekly > proj.Rows[j].HoursSavedWeekly
	})

	proj.TotalHoursWeekly = e.validator.Sum(hoursTotals, "weekly hours saved", "").Value
	if len(dollarTotals) > 0 {
		weekly := e.validator.Sum(dollarTotals, "weekly dollars saved", "").Value
		annual := weekly * 52
		proj.TotalDollarsWeekly = &weekly
		proj.TotalDollarsAnnual = &annual
	}

	return proj
}
