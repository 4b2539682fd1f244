package narrate

import (
	"fmt"
	"strings"

	"github.com/atlasworkforce/labor-intel/internal/aggregate"
	"github.com/atlasworkforce/labor-intel/internal/semantic"
)

const maxContextDocuments = 10

const contentTruncateLen = 500

// SystemPrompt frames the model as a labor market analyst and pins its
// answers to the supplied data.
const SystemPrompt = `You are a Labor Market Data Analyst assistant specialized in analyzing ONET labor market data.

Your role is to:
1. Provide accurate, data-grounded insights about occupations, industries, tasks, and employment
2. Clearly distinguish between information directly from the dataset and any external knowledge
3. Present findings clearly with appropriate structure (tables, bullets, or prose as needed)
4. Cite specific data points when making claims
5. Be transparent about limitations and data gaps

DATASET STRUCTURE:
- Each row represents ONE TASK for an occupation in an industry
- Employment is recorded in thousands of workers per (occupation, industry) pair
- To count tasks per occupation, count the number of rows for that occupation

IMPORTANT: When asked "What jobs..." or "Which occupations..." questions:
- If you see "OCCUPATION PATTERN MATCHING ANALYSIS" in the context, list ALL occupations shown
- DO NOT just pick the first occupation - list at least the top 10-15 as ranked
- Format as a clear numbered list with percentages/counts from the analysis
- Include the matching task count and percentage for each occupation

CRITICAL RULES:
- Base all answers strictly on the provided data
- If you use ANY external knowledge or make inferences, EXPLICITLY label them in a separate "External / Inferred Data" section
- Never hallucinate statistics or facts not in the data
- If data is insufficient, clearly state what's missing
- When presenting numbers, always cite the source (e.g., "Based on Employment field...")

Your responses should be:
- Accurate and grounded in data
- Clear and well-structured
- Appropriately detailed
- Honest about uncertainties`

// FormatContext renders semantic hits and computational results into the
// data context block handed to the model.
func FormatContext(hits []semantic.Result, comp *aggregate.Results) string {
	var b strings.Builder

	if len(hits) > 0 {
		b.WriteString("=== SEMANTIC SEARCH RESULTS ===\n")
		shown := hits
		if len(shown) > maxContextDocuments {
			shown = shown[:maxContextDocuments]
		}
		for i, hit := range shown {
			fmt.Fprintf(&b, "\n[Document %d] (Relevance: %.2f)\n", i+1, hit.Score)
			if occ := hit.Metadata["occupation"]; occ != "" {
				fmt.Fprintf(&b, "Occupation: %s\n", occ)
			}
			if ind := hit.Metadata["industry"]; ind != "" {
				fmt.Fprintf(&b, "Industry: %s\n", ind)
			}
			fmt.Fprintf(&b, "Content: %s\n", truncate(hit.Text, contentTruncateLen))
		}
	}

	if comp.Empty() {
		return b.String()
	}

	b.WriteString("\n=== COMPUTATIONAL ANALYSIS ===\n")

	writeMap(&b, "Counts", comp.Counts, func(v float64) string {
		return commaInt(int(v))
	})
	writeMap(&b, "Totals", comp.Totals, func(v float64) string {
		return commaFloat(v)
	})
	writeMap(&b, "Averages", comp.Averages, func(v float64) string {
		return commaFloat(v)
	})
	writeMap(&b, "Percentages", comp.Percentages, func(v float64) string {
		return fmt.Sprintf("%.1f%%", v)
	})

	if len(comp.Occupations) > 0 {
		b.WriteString("\nOccupations by Employment:\n")
		for _, o := range comp.Occupations {
			fmt.Fprintf(&b, "  - %s: %s thousand workers across %d industries", o.Occupation, commaFloat(o.Employment), o.Industries)
			if o.AvgWage != nil {
				fmt.Fprintf(&b, " (avg wage $%.2f/hr)", *o.AvgWage)
			}
			b.WriteString("\n")
		}
	}

	if len(comp.Industries) > 0 {
		b.WriteString("\nIndustries by Employment:\n")
		for _, ind := range comp.Industries {
			fmt.Fprintf(&b, "  - %s: %s thousand workers across %d occupations", ind.Industry, commaFloat(ind.Employment), ind.Occupations)
			if ind.AvgWage != nil {
				fmt.Fprintf(&b, " (avg wage $%.2f/hr)", *ind.AvgWage)
			}
			b.WriteString("\n")
		}
	}

	if len(comp.Proportions) > 0 {
		b.WriteString("\nIndustry Proportions (workers on matching tasks):\n")
		for _, p := range comp.Proportions {
			fmt.Fprintf(&b, "  - %s: %.1f%% (%s of %s thousand workers)\n",
				p.Industry, p.Proportion, commaFloat(p.MatchingEmployment), commaFloat(p.TotalEmployment))
		}
	}

	if len(comp.Tasks) > 0 {
		b.WriteString("\n=== TASK DETAIL RESULTS ===\n")
		for _, t := range comp.Tasks {
			fmt.Fprintf(&b, "  - %s (%s, %d industries, %.1f hrs/week)\n", t.Task, t.Occupation, t.Industries, t.HoursPerWeek)
		}
	}

	if len(comp.PatternAnalysis) > 0 {
		b.WriteString("\n=== OCCUPATION PATTERN MATCHING ANALYSIS ===\n")
		b.WriteString("(Occupations ranked by the share of their tasks that match the pattern)\n\n")
		for rank, stat := range comp.PatternAnalysis {
			fmt.Fprintf(&b, "%d. %s\n", rank+1, stat.Occupation)
			fmt.Fprintf(&b, "   - Matching tasks: %d/%d (%.1f%%)\n", stat.MatchingTasks, stat.TotalTasks, stat.Share)
			fmt.Fprintf(&b, "   - Employment: %s thousand workers\n", commaFloat(stat.Employment))
		}
		fmt.Fprintf(&b, "\nIMPORTANT: List ALL %d occupations shown above, not just the first one.\n", len(comp.PatternAnalysis))
	}

	if comp.Time != nil {
		b.WriteString("\nTime Spent (hours per week per task):\n")
		fmt.Fprintf(&b, "  - mean: %.2f, min: %.2f, max: %.2f, tasks: %d\n",
			comp.Time.Mean, comp.Time.Min, comp.Time.Max, comp.Time.Count)
	}

	if comp.Wages != nil {
		b.WriteString("\nHourly Wages (unique occupation-industry pairs):\n")
		fmt.Fprintf(&b, "  - mean: $%.2f, min: $%.2f, max: $%.2f, pairs: %d\n",
			comp.Wages.Mean, comp.Wages.Min, comp.Wages.Max, comp.Wages.Count)
	}

	if comp.Savings != nil {
		s := comp.Savings
		b.WriteString("\n=== AUTOMATION SAVINGS PROJECTION ===\n")
		fmt.Fprintf(&b, "Assumed time saved on matching tasks: %.0f%%\n", s.Fraction*100)
		for _, row := range s.Rows {
			fmt.Fprintf(&b, "  - %s: %s hours/week saved", row.Occupation, commaFloat(row.HoursSavedWeekly))
			if row.DollarsWeekly != nil {
				fmt.Fprintf(&b, " ($%s/week)", commaFloat(*row.DollarsWeekly))
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Total hours saved weekly: %s\n", commaFloat(s.TotalHoursWeekly))
		if s.TotalDollarsWeekly != nil {
			fmt.Fprintf(&b, "Total dollars saved weekly: $%s\n", commaFloat(*s.TotalDollarsWeekly))
		}
		if s.TotalDollarsAnnual != nil {
			fmt.Fprintf(&b, "Total dollars saved annually: $%s\n", commaFloat(*s.TotalDollarsAnnual))
		}
	}

	return b.String()
}

// AnalysisPrompt assembles the user prompt for one query, its rendered data
// context, and the routed intent.
func AnalysisPrompt(query, context, intent string) string {
	return fmt.Sprintf(`Based on the labor market data provided below, answer the following question:

QUESTION: %s

QUERY TYPE: %s

DATA CONTEXT:
%s

INSTRUCTIONS:
1. Answer the question using ONLY the data provided above
2. Be specific and cite relevant statistics
3. If you need to make inferences or use external knowledge, create a separate section labeled "External / Inferred Data"
4. If the data is insufficient to fully answer the question, clearly state what information is missing
5. Present your answer in a clear, structured format
6. Include tables or lists if they help clarity

ANSWER:`, query, strings.ToUpper(intent), context)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func writeMap(b *strings.Builder, heading string, values map[string]float64, format func(float64) string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", heading)
	for _, key := range sortedKeys(values) {
		fmt.Fprintf(b, "- %s: %s\n", key, format(values[key]))
	}
}
