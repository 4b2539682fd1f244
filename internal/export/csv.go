// Package export turns query results into downloadable CSV documents. A
// three-tier strategy guarantees every answered query has a CSV:
// structured computational results first, semantic hits second, and a
// query-metadata fallback last.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/atlasworkforce/labor-intel/internal/aggregate"
	"github.com/atlasworkforce/labor-intel/internal/observability"
	"github.com/atlasworkforce/labor-intel/internal/routing"
	"github.com/atlasworkforce/labor-intel/internal/semantic"
)

// Tier identifies which strategy produced a document.
type Tier string

// Generation tiers, in priority order.
const (
	TierComputational Tier = "computational"
	TierSemantic      Tier = "semantic"
	TierFallback      Tier = "fallback"
)

// Document is one generated CSV.
type Document struct {
	Tier   Tier
	Source string // which result family tier 1 drew from
	Header []string
	Rows   [][]string
}

// Write emits the document as CSV.
func (d *Document) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(d.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// Bytes renders the document to a byte slice.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stats counts documents generated per tier.
type Stats struct {
	Computational int
	Semantic      int
	Fallback      int
	Total         int
}

// Generator builds CSV documents from retrieval output.
type Generator struct {
	log *observability.Logger

	mu    sync.Mutex
	stats Stats
}

// NewGenerator creates a Generator.
func NewGenerator(log *observability.Logger) *Generator {
	if log == nil {
		log = observability.DefaultLogger()
	}
	return &Generator{log: log}
}

// Stats returns a snapshot of generation counts.
func (g *Generator) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// Generate builds the CSV for one query. It never returns nil.
func (g *Generator) Generate(
	query string,
	hits []semantic.Result,
	comp *aggregate.Results,
	decision routing.Decision,
) *Document {
	if doc := g.fromComputational(comp); doc != nil {
		g.count(TierComputational)
		g.log.Debug().Str("source", doc.Source).Int("rows", len(doc.Rows)).Msg("csv from computational results")
		return doc
	}

	if doc := g.fromSemantic(hits); doc != nil {
		g.count(TierSemantic)
		g.log.Debug().Int("rows", len(doc.Rows)).Msg("csv from semantic results")
		return doc
	}

	g.count(TierFallback)
	g.log.Warn().Str("query", query).Msg("no structured data, using fallback csv")
	return g.fallback(query, decision)
}

func (g *Generator) count(tier Tier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch tier {
	case TierComputational:
		g.stats.Computational++
	case TierSemantic:
		g.stats.Semantic++
	case TierFallback:
		g.stats.Fallback++
	}
	g.stats.Total++
}

// fromComputational extracts the highest-priority structured result.
func (g *Generator) fromComputational(comp *aggregate.Results) *Document {
	if comp.Empty() {
		return nil
	}

	if s := comp.Savings; s != nil && len(s.Rows) > 0 {
		doc := &Document{
			Tier:   TierComputational,
			Source: "savings",
			Header: []string{"Occupation", "Employment (thousands)", "Avg Hours/Week", "Time Saved (hrs/worker/week)", "Hours Saved Weekly", "Dollars Saved Weekly", "Dollars Saved Annually"},
		}
		for _, row := range s.Rows {
			doc.Rows = append(doc.Rows, []string{
				row.Occupation,
				f2(row.Employment),
				f2(row.AvgHoursPerWeek),
				f2(row.TimeSavedHours),
				f2(row.HoursSavedWeekly),
				optF2(row.DollarsWeekly),
				optF2(row.DollarsAnnual),
			})
		}
		return doc
	}

	if len(comp.Occupations) > 0 {
		doc := &Document{
			Tier:   TierComputational,
			Source: "occupation_employment",
			Header: []string{"Occupation", "Employment (thousands)", "Avg Hourly Wage ($)", "Industries"},
		}
		for _, o := range comp.Occupations {
			doc.Rows = append(doc.Rows, []string{
				o.Occupation, f2(o.Employment), optF2(o.AvgWage), strconv.Itoa(o.Industries),
			})
		}
		return doc
	}

	if len(comp.Industries) > 0 {
		doc := &Document{
			Tier:   TierComputational,
			Source: "industry_employment",
			Header: []string{"Industry", "Employment (thousands)", "Avg Hourly Wage ($)", "Occupations"},
		}
		for _, ind := range comp.Industries {
			doc.Rows = append(doc.Rows, []string{
				ind.Industry, f2(ind.Employment), optF2(ind.AvgWage), strconv.Itoa(ind.Occupations),
			})
		}
		return doc
	}

	if len(comp.Proportions) > 0 {
		doc := &Document{
			Tier:   TierComputational,
			Source: "industry_proportions",
			Header: []string{"Industry", "Total Employment (thousands)", "Matching Employment (thousands)", "Proportion (%)"},
		}
		for _, p := range comp.Proportions {
			doc.Rows = append(doc.Rows, []string{
				p.Industry, f2(p.TotalEmployment), f2(p.MatchingEmployment), f1(p.Proportion),
			})
		}
		return doc
	}

	if len(comp.PatternAnalysis) > 0 {
		doc := &Document{
			Tier:   TierComputational,
			Source: "pattern_analysis",
			Header: []string{"Occupation", "Matching Tasks", "Total Tasks", "Share (%)", "Employment (thousands)"},
		}
		for _, stat := range comp.PatternAnalysis {
			doc.Rows = append(doc.Rows, []string{
				stat.Occupation,
				strconv.Itoa(stat.MatchingTasks),
				strconv.Itoa(stat.TotalTasks),
				f1(stat.Share),
				f2(stat.Employment),
			})
		}
		return doc
	}

	if len(comp.Tasks) > 0 {
		doc := &Document{
			Tier:   TierComputational,
			Source: "task_details",
			Header: []string{"Task", "Occupation", "Industries", "Hours per Week"},
		}
		for _, t := range comp.Tasks {
			doc.Rows = append(doc.Rows, []string{
				t.Task, t.Occupation, strconv.Itoa(t.Industries), f1(t.HoursPerWeek),
			})
		}
		return doc
	}

	if comp.Time != nil && comp.Time.Count > 0 {
		return &Document{
			Tier:   TierComputational,
			Source: "time_analysis",
			Header: []string{"Mean Hours/Week", "Min Hours/Week", "Max Hours/Week", "Tasks"},
			Rows: [][]string{{
				f2(comp.Time.Mean), f2(comp.Time.Min), f2(comp.Time.Max), strconv.Itoa(comp.Time.Count),
			}},
		}
	}

	if comp.Wages != nil && comp.Wages.Count > 0 {
		return &Document{
			Tier:   TierComputational,
			Source: "wage_analysis",
			Header: []string{"Mean Hourly Wage ($)", "Min Hourly Wage ($)", "Max Hourly Wage ($)", "Pairs"},
			Rows: [][]string{{
				f2(comp.Wages.Mean), f2(comp.Wages.Min), f2(comp.Wages.Max), strconv.Itoa(comp.Wages.Count),
			}},
		}
	}

	// Only loose named figures remain.
	if doc := g.fromMaps(comp); doc != nil {
		return doc
	}
	return nil
}

// fromMaps renders the generic named-figure maps as metric/value rows.
func (g *Generator) fromMaps(comp *aggregate.Results) *Document {
	doc := &Document{
		Tier:   TierComputational,
		Source: "named_figures",
		Header: []string{"Metric", "Value"},
	}
	appendMap := func(m map[string]float64) {
		for _, key := range sortedKeys(m) {
			doc.Rows = append(doc.Rows, []string{key, f2(m[key])})
		}
	}
	appendMap(comp.Counts)
	appendMap(comp.Totals)
	appendMap(comp.Averages)
	appendMap(comp.Percentages)
	if len(doc.Rows) == 0 {
		return nil
	}
	return doc
}

// fromSemantic renders semantic hits as ranked rows.
func (g *Generator) fromSemantic(hits []semantic.Result) *Document {
	if len(hits) == 0 {
		return nil
	}

	doc := &Document{
		Tier:   TierSemantic,
		Source: "semantic_hits",
		Header: []string{"Rank", "Content", "Relevance Score", "Occupation", "Industry"},
	}
	for i, hit := range hits {
		doc.Rows = append(doc.Rows, []string{
			strconv.Itoa(i + 1),
			hit.Text,
			strconv.FormatFloat(round3(hit.Score), 'f', 3, 64),
			hit.Metadata["occupation"],
			hit.Metadata["industry"],
		})
	}
	return doc
}

// fallback carries query metadata so the export is never empty.
func (g *Generator) fallback(query string, decision routing.Decision) *Document {
	return &Document{
		Tier:   TierFallback,
		Header: []string{"Query", "Query Type", "Category", "Timestamp", "Note"},
		Rows: [][]string{{
			query,
			string(decision.Intent),
			decision.Params.Category,
			time.Now().Format("2006-01-02 15:04:05"),
			"Narrative response only. This CSV contains query metadata.",
		}},
	}
}

func f1(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }
func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func optF2(v *float64) string {
	if v == nil {
		return ""
	}
	return f2(*v)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
