package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/atlasworkforce/labor-intel/internal/dataset"
	"github.com/atlasworkforce/labor-intel/internal/patterns"
)

// newCategoriesCmd creates the task-category subcommand.
func newCategoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Inspect and test task category patterns",
	}
	cmd.AddCommand(newCategoriesListCmd())
	cmd.AddCommand(newCategoriesDetectCmd())
	cmd.AddCommand(newCategoriesMatchCmd())
	return cmd
}

func newCategoriesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured task categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := patterns.LoadStore(cfg.Patterns.Path, logger)
			cats := store.List()

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(cats)
			}

			if len(cats) == 0 {
				Warning("No task categories loaded from %s", cfg.Patterns.Path)
				return nil
			}

			rows := make([][]string, 0, len(cats))
			for _, cat := range cats {
				rows = append(rows, []string{
					cat.Name,
					cat.DisplayName,
					cat.Strategy(),
					fmt.Sprintf("%.2f", cat.MinConfidence()),
					strconv.Itoa(len(cat.ActionVerbs.All())),
					strconv.Itoa(len(cat.ObjectKeywords.All())),
				})
			}
			Table([]string{"Name", "Display", "Strategy", "Min conf", "Verbs", "Keywords"}, rows)
			return nil
		},
	}
}

func newCategoriesDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect <query>",
		Short: "Show which category a query would activate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := patterns.LoadStore(cfg.Patterns.Path, logger)
			matcher := patterns.NewMatcher(store, logger)

			det := matcher.DetectCategory(args[0])

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(det)
			}

			if det.Detected() {
				Success("Detected %s (score %.2f)", det.Category, det.Score)
			} else {
				Info("No category cleared the threshold")
			}

			names := make([]string, 0, len(det.Scores))
			for name := range det.Scores {
				names = append(names, name)
			}
			sort.Slice(names, func(i, j int) bool { return det.Scores[names[i]] > det.Scores[names[j]] })

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, fmt.Sprintf("%.2f", det.Scores[name])})
			}
			Table([]string{"Category", "Score"}, rows)
			return nil
		},
	}
}

func newCategoriesMatchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "match <category>",
		Short: "Scan the dataset for tasks matching a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryName := args[0]

			store := patterns.LoadStore(cfg.Patterns.Path, logger)
			if _, ok := store.Get(categoryName); !ok {
				return fmt.Errorf("unknown category %q, run 'labor-intel categories list'", categoryName)
			}
			matcher := patterns.NewMatcher(store, logger)

			table, err := dataset.LoadCSV(cfg.Dataset.Path)
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}

			type matchRow struct {
				Occupation string  `json:"occupation"`
				Industry   string  `json:"industry"`
				Task       string  `json:"task"`
				Confidence float64 `json:"confidence"`
			}

			bar := NewProgressBar(int64(table.Len()), "Matching tasks")
			matched := make([]matchRow, 0)
			for _, rec := range table.Records {
				res := matcher.MatchTask(rec.Task, categoryName)
				if res.Matched {
					matched = append(matched, matchRow{
						Occupation: rec.Occupation,
						Industry:   rec.Industry,
						Task:       rec.Task,
						Confidence: res.Confidence,
					})
				}
				_ = bar.Add(1)
			}
			_ = bar.Finish()

			sort.SliceStable(matched, func(i, j int) bool { return matched[i].Confidence > matched[j].Confidence })

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"category": categoryName,
					"rows":     table.Len(),
					"matched":  len(matched),
					"tasks":    matched,
				})
			}

			Success("%d of %d task rows match %s", len(matched), table.Len(), categoryName)
			if limit > 0 && len(matched) > limit {
				matched = matched[:limit]
			}
			rows := make([][]string, 0, len(matched))
			for _, m := range matched {
				task := m.Task
				if len(task) > 60 {
					task = task[:57] + "..."
				}
				rows = append(rows, []string{
					m.Occupation,
					m.Industry,
					task,
					fmt.Sprintf("%.2f", m.Confidence),
				})
			}
			Table([]string{"Occupation", "Industry", "Task", "Confidence"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to print (0 = all)")
	return cmd
}
