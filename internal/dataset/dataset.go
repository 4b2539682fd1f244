// Package dataset loads and models the workforce task dataset.
//
// Each row describes one occupation's involvement with one task within one
// industry, together with employment, wage, and time-on-task measures. The
// same (occupation, industry) pair appears on many rows, one per task, so
// any employment or wage aggregation must first collapse to unique pairs.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Canonical column headers of the source dataset.
const (
	ColOccupation   = "ONET job title"
	ColIndustry     = "Industry title"
	ColTask         = "Detailed job tasks"
	ColEmployment   = "Employment"
	ColWage         = "Hourly wage"
	ColHoursPerWeek = "Hours per week spent on task"
)

// Record is one row of the dataset.
type Record struct {
	Occupation   string
	Industry     string
	Task         string
	Employment   float64  // thousands of workers
	Wage         *float64 // dollars per hour, nil when unreported
	HoursPerWeek float64  // hours per week spent on the task
}

// PairKey identifies a unique (occupation, industry) combination.
type PairKey struct {
	Occupation string
	Industry   string
}

// Table is an in-memory dataset with column presence tracking.
type Table struct {
	Records []Record
	columns map[string]bool
}

// NewTable builds a Table from records, assuming all canonical columns
// are present.
func NewTable(records []Record) *Table {
	return &Table{
		Records: records,
		columns: map[string]bool{
			ColOccupation:   true,
			ColIndustry:     true,
			ColTask:         true,
			ColEmployment:   true,
			ColWage:         true,
			ColHoursPerWeek: true,
		},
	}
}

// HasColumn reports whether the named column was present in the source file.
func (t *Table) HasColumn(name string) bool {
	return t.columns[name]
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// LoadCSV reads the dataset from a CSV file.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	return t, nil
}

// ReadCSV parses dataset rows from a reader. The header row determines
// which columns are available; rows missing required text fields are
// skipped rather than failing the whole load.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}

	for _, required := range []string{ColOccupation, ColIndustry, ColTask} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	t := &Table{columns: make(map[string]bool, len(idx))}
	for name := range idx {
		t.columns[name] = true
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		rec := Record{
			Occupation: field(row, idx, ColOccupation),
			Industry:   field(row, idx, ColIndustry),
			Task:       field(row, idx, ColTask),
		}
		if rec.Occupation == "" || rec.Industry == "" {
			continue
		}

		rec.Employment = parseFloat(field(row, idx, ColEmployment))
		rec.HoursPerWeek = parseFloat(field(row, idx, ColHoursPerWeek))
		if raw := field(row, idx, ColWage); raw != "" {
			if w, err := strconv.ParseFloat(cleanNumber(raw), 64); err == nil {
				rec.Wage = &w
			}
		}

		t.Records = append(t.Records, rec)
	}

	return t, nil
}

// Filter returns a new Table containing the records at the given indexes.
func (t *Table) Filter(indexes []int) *Table {
	out := &Table{columns: t.columns}
	out.Records = make([]Record, 0, len(indexes))
	for _, i := range indexes {
		if i >= 0 && i < len(t.Records) {
			out.Records = append(out.Records, t.Records[i])
		}
	}
	return out
}

// Select returns a new Table of records matching the predicate.
func (t *Table) Select(keep func(Record) bool) *Table {
	out := &Table{columns: t.columns}
	for _, rec := range t.Records {
		if keep(rec) {
			out.Records = append(out.Records, rec)
		}
	}
	return out
}

// UniquePairs collapses the table to one record per (occupation, industry)
// pair, keeping the first observed employment and wage values. Task-level
// fields are not meaningful on the result.
func (t *Table) UniquePairs() []Record {
	seen := make(map[PairKey]bool, len(t.Records))
	out := make([]Record, 0, len(t.Records))
	for _, rec := range t.Records {
		key := PairKey{Occupation: rec.Occupation, Industry: rec.Industry}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, rec)
	}
	return out
}

// Occupations returns the distinct occupation titles in first-seen order.
func (t *Table) Occupations() []string {
	return distinct(t.Records, func(r Record) string { return r.Occupation })
}

// Industries returns the distinct industry titles in first-seen order.
func (t *Table) Industries() []string {
	return distinct(t.Records, func(r Record) string { return r.Industry })
}

func distinct(records []Record, key func(Record) string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range records {
		k := key(rec)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func field(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseFloat(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleanNumber(raw), 64)
	if err != nil {
		return 0
	}
	return v
}

func cleanNumber(raw string) string {
	raw = strings.ReplaceAll(raw, ",", "")
	raw = strings.TrimPrefix(raw, "$")
	return strings.TrimSpace(raw)
}
