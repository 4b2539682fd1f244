// Package arithmetic computes ground-truth statistics and validates
// model-generated narration against them.
//
// Every numeric claim the engine makes is computed here first. The language
// model only narrates; when its text disagrees with a computed value the
// difference is reported as a discrepancy rather than silently trusted.
package arithmetic

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/atlasworkforce/labor-intel/internal/config"
	"github.com/atlasworkforce/labor-intel/internal/observability"
)

// Op identifies an arithmetic operation.
type Op string

// Supported operations.
const (
	OpSum        Op = "sum"
	OpCount      Op = "count"
	OpAverage    Op = "average"
	OpPercentage Op = "percentage"
	OpMin        Op = "min"
	OpMax        Op = "max"
)

// Severity classifies how far a narrated value strays from the computed one.
type Severity string

// Severity levels, ordered by distance from ground truth.
const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Units used by Result.Format.
const (
	UnitThousands = "k"
	UnitPercent   = "%"
	UnitCount     = "count"
)

// SourceStats captures the input distribution behind a computed value.
type SourceStats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
	Mean  float64
}

// Result is one computed value with its audit trail.
type Result struct {
	Op          Op
	Value       float64
	Unit        string
	Description string
	Source      SourceStats
}

// Format renders the value for display according to its unit.
func (r Result) Format() string {
	switch r.Unit {
	case UnitThousands:
		return groupThousands(r.Value, 2) + "k"
	case UnitPercent:
		return fmt.Sprintf("%.1f%%", r.Value)
	case UnitCount:
		return groupThousands(r.Value, 0)
	default:
		return groupThousands(r.Value, 2)
	}
}

// Discrepancy records a mismatch between narrated and computed values.
type Discrepancy struct {
	Op            Op
	ComputedValue float64
	NarratedValue float64
	Difference    float64
	DifferencePct float64
	Location      string
	Severity      Severity
}

// Validator is the ground-truth ledger for one query.
type Validator struct {
	tol           config.TolerancesConfig
	log           *observability.Logger
	computed      map[string]Result
	order         []string
	discrepancies []Discrepancy
}

// NewValidator creates a Validator with the given tolerance configuration.
func NewValidator(tol config.TolerancesConfig, log *observability.Logger) *Validator {
	if log == nil {
		log = observability.DefaultLogger()
	}
	if tol.Minor == 0 && tol.Major == 0 && tol.Critical == 0 {
		tol = config.DefaultConfig().Analysis.Tolerances
	}
	return &Validator{
		tol:      tol,
		log:      log,
		computed: make(map[string]Result),
	}
}

// Sum computes a sum with full audit trail. Empty input yields a zero
// result with Source.Count == 0, never an error.
func (v *Validator) Sum(data []float64, description, unit string) Result {
	res := Result{Op: OpSum, Unit: unit, Description: description}
	if len(data) == 0 {
		v.log.Warn().Str("description", description).Msg("empty data for sum")
		v.record(res)
		return res
	}

	res.Source = stats(data)
	res.Value = res.Source.Sum
	v.record(res)
	v.log.Info().
		Str("description", description).
		Str("value", res.Format()).
		Int("inputs", len(data)).
		Msg("computed sum")
	return res
}

// Count computes a count with audit trail.
func (v *Validator) Count(n int, description string) Result {
	res := Result{
		Op:          OpCount,
		Value:       float64(n),
		Unit:        UnitCount,
		Description: description,
		Source:      SourceStats{Count: n},
	}
	v.record(res)
	v.log.Info().Str("description", description).Int("value", n).Msg("computed count")
	return res
}

// Average computes a mean with audit trail. Empty input yields zero.
func (v *Validator) Average(data []float64, description, unit string) Result {
	res := Result{Op: OpAverage, Unit: unit, Description: description}
	if len(data) == 0 {
		v.log.Warn().Str("description", description).Msg("empty data for average")
		v.record(res)
		return res
	}

	res.Source = stats(data)
	res.Value = res.Source.Mean
	v.record(res)
	v.log.Info().
		Str("description", description).
		Str("value", res.Format()).
		Msg("computed average")
	return res
}

// Percentage computes numerator/denominator as a percentage. A zero
// denominator yields zero rather than an error.
func (v *Validator) Percentage(numerator, denominator float64, description string) Result {
	res := Result{Op: OpPercentage, Unit: UnitPercent, Description: description}
	if denominator == 0 {
		v.log.Warn().Str("description", description).Msg("division by zero in percentage")
		v.record(res)
		return res
	}

	res.Value = numerator / denominator * 100
	res.Source = SourceStats{Count: 2, Sum: numerator + denominator, Min: numerator, Max: denominator}
	v.record(res)
	v.log.Info().
		Str("description", description).
		Str("value", res.Format()).
		Msg("computed percentage")
	return res
}

// MinMax computes minimum and maximum with audit trail.
func (v *Validator) MinMax(data []float64, description, unit string) (Result, Result) {
	if len(data) == 0 {
		empty := Result{Op: OpMin, Unit: unit, Description: description}
		return empty, empty
	}

	src := stats(data)
	minRes := Result{
		Op:          OpMin,
		Value:       src.Min,
		Unit:        unit,
		Description: "Minimum " + description,
		Source:      src,
	}
	maxRes := Result{
		Op:          OpMax,
		Value:       src.Max,
		Unit:        unit,
		Description: "Maximum " + description,
		Source:      src,
	}
	v.record(minRes)
	v.record(maxRes)
	return minRes, maxRes
}

// Computed returns all computed results in insertion order.
func (v *Validator) Computed() []Result {
	out := make([]Result, 0, len(v.order))
	for _, key := range v.order {
		out = append(out, v.computed[key])
	}
	return out
}

// Lookup returns a computed result by operation and description.
func (v *Validator) Lookup(op Op, description string) (Result, bool) {
	res, ok := v.computed[ledgerKey(op, description)]
	return res, ok
}

// narrationPatterns are ordered most specific first. Validate claims each
// narrated number for the first pattern that matches it, so a figure like
// "Total Employment: 180 thousand workers" counts once, not once per
// overlapping label. The final unitless form catches bare "Total: 600.00".
var narrationPatterns = []struct {
	re        *regexp.Regexp
	valueType string
}{
	{regexp.MustCompile(`(?i)Total Employment:?\s*\**([0-9,]+\.?\d*)\s*thousand`), "total_employment"},
	{regexp.MustCompile(`(?i)Total:?\s*\**([0-9,]+\.?\d*)\s*thousand`), "total"},
	{regexp.MustCompile(`(?i)Total:?\s*\**([0-9,]+\.?\d*)\s*k`), "total_k"},
	{regexp.MustCompile(`(?i)([0-9,]+\.?\d*)\s*thousand\s*workers?`), "employment"},
	{regexp.MustCompile(`(?i)([0-9,]+\.?\d*)\s*occupations?`), "occupation_count"},
	{regexp.MustCompile(`(?i)([0-9,]+\.?\d*)\s*industries`), "industry_count"},
	{regexp.MustCompile(`(?i)([0-9,]+\.?\d*)%`), "percentage"},
	{regexp.MustCompile(`(?i)Total:?\s*\**([0-9,]+\.?\d*)`), "total"},
}

// Validate scans narrated text for numeric claims and compares each against
// the computed ledger. Discrepancies beyond the minor tolerance are
// recorded and returned.
func (v *Validator) Validate(text string) []Discrepancy {
	var discrepancies []Discrepancy

	claimed := make(map[int]bool)
	for _, np := range narrationPatterns {
		for _, loc := range np.re.FindAllStringSubmatchIndex(text, -1) {
			numStart, numEnd := loc[2], loc[3]
			if claimed[numStart] {
				continue
			}

			raw := strings.ReplaceAll(text[numStart:numEnd], ",", "")
			narrated, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			claimed[numStart] = true
			location := text[loc[0]:loc[1]]

			for _, key := range v.order {
				computed := v.computed[key]
				if !v.correspond(narrated, computed, np.valueType) {
					continue
				}

				diff := math.Abs(narrated - computed.Value)
				var diffPct float64
				if computed.Value != 0 {
					diffPct = diff / computed.Value * 100
				}
				if diffPct <= v.tol.Minor {
					continue
				}

				d := Discrepancy{
					Op:            computed.Op,
					ComputedValue: computed.Value,
					NarratedValue: narrated,
					Difference:    diff,
					DifferencePct: diffPct,
					Location:      location,
					Severity:      v.severity(diffPct),
				}
				discrepancies = append(discrepancies, d)
				v.log.Warn().
					Str("severity", string(d.Severity)).
					Float64("narrated", narrated).
					Float64("computed", computed.Value).
					Float64("difference_pct", diffPct).
					Msg("arithmetic discrepancy")
			}
		}
	}

	v.discrepancies = discrepancies
	return discrepancies
}

// correspond decides whether a narrated value refers to a computed one.
// Values within the exact-match tolerance always correspond; otherwise the
// label class must agree with the operation and the values must land in the
// same ballpark.
func (v *Validator) correspond(narrated float64, computed Result, valueType string) bool {
	if computed.Value == 0 {
		return false
	}
	relDiff := math.Abs(narrated-computed.Value) / math.Abs(computed.Value)

	if relDiff < v.tol.ExactMatch/100 {
		return true
	}

	ballpark := v.tol.CorrespondenceBallpark / 100
	switch valueType {
	case "total_employment", "total", "total_k", "employment":
		return computed.Op == OpSum && relDiff < ballpark
	case "occupation_count", "industry_count":
		return computed.Op == OpCount && relDiff < ballpark
	}
	return false
}

func (v *Validator) severity(diffPct float64) Severity {
	switch {
	case diffPct > v.tol.Critical:
		return SeverityCritical
	case diffPct > v.tol.Major:
		return SeverityMajor
	default:
		return SeverityMinor
	}
}

// Summary aggregates validation state for reporting and persistence.
type Summary struct {
	Computations  int
	Discrepancies int
	BySeverity    map[Severity]int
	Passed        bool
}

// Summary returns the validation summary for this query.
func (v *Validator) Summary() Summary {
	s := Summary{
		Computations:  len(v.computed),
		Discrepancies: len(v.discrepancies),
		BySeverity:    make(map[Severity]int),
		Passed:        len(v.discrepancies) == 0,
	}
	for _, d := range v.discrepancies {
		s.BySeverity[d.Severity]++
	}
	return s
}

// Report formats detected discrepancies for user display. Returns an empty
// string when validation passed.
func (v *Validator) Report() string {
	if len(v.discrepancies) == 0 {
		return ""
	}

	var b strings.Builder
	rule := strings.Repeat("=", 80)
	b.WriteString("\n\n" + rule + "\n")
	b.WriteString("ARITHMETIC VALIDATION ALERT\n")
	b.WriteString(rule + "\n\n")
	b.WriteString("Discrepancies detected between narrated output and verified calculations:\n\n")

	for i, d := range v.discrepancies {
		fmt.Fprintf(&b, "%d. %s (%s):\n", i+1, strings.ToUpper(string(d.Op)), strings.ToUpper(string(d.Severity)))
		fmt.Fprintf(&b, "   Computed (verified): %s\n", groupThousands(d.ComputedValue, 2))
		fmt.Fprintf(&b, "   Narrated: %s\n", groupThousands(d.NarratedValue, 2))
		fmt.Fprintf(&b, "   Difference: %s (%.1f%%)\n", groupThousands(d.Difference, 2), d.DifferencePct)
		fmt.Fprintf(&b, "   Location: %q\n\n", d.Location)
	}

	b.WriteString(rule + "\n")
	b.WriteString("Use the verified values above. They are mathematically correct.\n")
	b.WriteString(rule + "\n")
	return b.String()
}

func (v *Validator) record(res Result) {
	key := ledgerKey(res.Op, res.Description)
	if _, exists := v.computed[key]; !exists {
		v.order = append(v.order, key)
	}
	v.computed[key] = res
}

func ledgerKey(op Op, description string) string {
	return string(op) + "_" + strings.ReplaceAll(description, " ", "_")
}

func stats(data []float64) SourceStats {
	src := SourceStats{Count: len(data), Min: data[0], Max: data[0]}
	for _, val := range data {
		src.Sum += val
		if val < src.Min {
			src.Min = val
		}
		if val > src.Max {
			src.Max = val
		}
	}
	src.Mean = src.Sum / float64(len(data))
	return src
}

// groupThousands formats a number with comma-grouped integer digits and the
// given number of decimals.
func groupThousands(value float64, decimals int) string {
	neg := value < 0
	s := strconv.FormatFloat(math.Abs(value), 'f', decimals, 64)

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteString(fracPart)
	return b.String()
}
