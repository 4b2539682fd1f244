package narrate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/atlasworkforce/labor-intel/internal/observability"
)

// correctionTolerancePct allows narrated totals to differ from the computed
// total by rounding noise before a rewrite kicks in.
const correctionTolerancePct = 0.1

// totalPatterns match the ways a model tends to phrase a grand total. The
// entity-qualified form is built per call since it embeds the entity word.
var totalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Total Employment:?\s*\**([0-9,]+\.?\d*)\s*thousand\s*workers?`),
	regexp.MustCompile(`(?i)Total Employment:?\s*\**([0-9,]+\.?\d*)\s*thousand`),
	regexp.MustCompile(`(?i)Total:?\s*\**([0-9,]+\.?\d*)\s*thousand\s*workers?`),
	regexp.MustCompile(`(?i)Total:?\s*\**([0-9,]+\.?\d*)\s*k`),
}

// CorrectTotals rewrites a narrated grand total that disagrees with the
// computed one. If the narration carries no total at all, the correct line
// is appended instead. The returned bool reports whether the text changed.
func CorrectTotals(answer string, total float64, count int, entity string, log *observability.Logger) (string, bool) {
	if total == 0 || entity == "" {
		return answer, false
	}

	fullPattern := regexp.MustCompile(
		`(?i)Total Employment:?\s*\**([0-9,]+\.?\d*)\s*thousand\s*workers?\s*\(?.*?\)?\s*across\s*\d+\s*` + entity)
	patterns := append([]*regexp.Regexp{fullPattern}, totalPatterns...)

	correctLine := fmt.Sprintf("Total Employment: %s thousand workers across %d %s", commaFloat(total), count, entity)

	for _, re := range patterns {
		loc := re.FindStringSubmatchIndex(answer)
		if loc == nil {
			continue
		}
		reported, err := strconv.ParseFloat(strings.ReplaceAll(answer[loc[2]:loc[3]], ",", ""), 64)
		if err != nil {
			continue
		}

		diffPct := abs(reported-total) / total * 100
		if diffPct <= correctionTolerancePct {
			return answer, false
		}

		if log != nil {
			log.Warn().
				Float64("reported", reported).
				Float64("computed", total).
				Float64("diff_pct", diffPct).
				Msg("narrated total disagrees with computed total, rewriting")
		}
		return answer[:loc[0]] + correctLine + answer[loc[1]:], true
	}

	// No total in the narration at all. Append the computed one.
	if log != nil {
		log.Info().Str("entity", entity).Msg("narration missing grand total, appending computed value")
	}
	return answer + "\n\n**" + correctLine + "**", true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
