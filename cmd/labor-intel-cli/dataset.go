package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/atlasworkforce/labor-intel/internal/dataset"
)

// newDatasetCmd creates the dataset inspection subcommand.
func newDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect the configured workforce dataset",
	}
	cmd.AddCommand(newDatasetInfoCmd())
	return cmd
}

func newDatasetInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show dataset dimensions and column availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			sp := NewSpinner("Loading dataset " + cfg.Dataset.Path)
			sp.Start()
			table, err := dataset.LoadCSV(cfg.Dataset.Path)
			sp.Stop()
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}

			pairs := table.UniquePairs()
			columns := []string{
				dataset.ColOccupation,
				dataset.ColIndustry,
				dataset.ColTask,
				dataset.ColEmployment,
				dataset.ColWage,
				dataset.ColHoursPerWeek,
			}

			if outputJSON {
				present := make(map[string]bool, len(columns))
				for _, col := range columns {
					present[col] = table.HasColumn(col)
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"path":        cfg.Dataset.Path,
					"rows":        table.Len(),
					"pairs":       len(pairs),
					"occupations": len(table.Occupations()),
					"industries":  len(table.Industries()),
					"columns":     present,
				})
			}

			Section("Dataset")
			Table([]string{"Metric", "Value"}, [][]string{
				{"Path", cfg.Dataset.Path},
				{"Task rows", strconv.Itoa(table.Len())},
				{"Occupation/industry pairs", strconv.Itoa(len(pairs))},
				{"Occupations", strconv.Itoa(len(table.Occupations()))},
				{"Industries", strconv.Itoa(len(table.Industries()))},
			})

			Section("Columns")
			rows := make([][]string, 0, len(columns))
			for _, col := range columns {
				state := "present"
				if !table.HasColumn(col) {
					state = "missing (dependent aggregations skipped)"
				}
				rows = append(rows, []string{col, state})
			}
			Table([]string{"Column", "Status"}, rows)
			return nil
		},
	}
}
