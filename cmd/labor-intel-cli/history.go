package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newHistoryCmd creates the audit-history subcommand.
func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Review processed queries and flagged discrepancies",
	}
	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var (
		sessionID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			audit, closeDB, err := openAudit()
			if err != nil {
				return err
			}
			defer closeDB()

			records, err := audit.ListQueries(ctx, sessionID, limit)
			if err != nil {
				return fmt.Errorf("list queries: %w", err)
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			if len(records) == 0 {
				Info("No queries recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				query := rec.Query
				if len(query) > 50 {
					query = query[:47] + "..."
				}
				rows = append(rows, []string{
					rec.ID.String(),
					rec.CreatedAt.Format("2006-01-02 15:04:05"),
					rec.Intent,
					rec.Category,
					query,
					strconv.FormatInt(rec.LatencyMS, 10) + "ms",
				})
			}
			Table([]string{"ID", "When", "Intent", "Category", "Query", "Latency"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "filter by session ID")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to list")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <query-id>",
		Short: "Show one query with its flagged discrepancies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid query ID %q: %w", args[0], err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			audit, closeDB, err := openAudit()
			if err != nil {
				return err
			}
			defer closeDB()

			rec, err := audit.GetQuery(ctx, id)
			if err != nil {
				return fmt.Errorf("get query: %w", err)
			}
			discs, err := audit.ListDiscrepancies(ctx, id)
			if err != nil {
				return fmt.Errorf("list discrepancies: %w", err)
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]interface{}{
					"query":         rec,
					"discrepancies": discs,
				})
			}

			Section("Query")
			Table([]string{"Field", "Value"}, [][]string{
				{"ID", rec.ID.String()},
				{"Session", rec.SessionID},
				{"When", rec.CreatedAt.Format("2006-01-02 15:04:05")},
				{"Intent", rec.Intent},
				{"Category", rec.Category},
				{"Latency", strconv.FormatInt(rec.LatencyMS, 10) + "ms"},
				{"Cache hit", strconv.FormatBool(rec.CacheHit)},
			})

			fmt.Println()
			fmt.Println(rec.Query)
			fmt.Println()
			fmt.Println(rec.Answer)

			if len(discs) == 0 {
				Success("No arithmetic discrepancies recorded")
				return nil
			}

			Section("Discrepancies")
			rows := make([][]string, 0, len(discs))
			for _, d := range discs {
				rows = append(rows, []string{
					d.Op,
					fmt.Sprintf("%.2f", d.ComputedValue),
					fmt.Sprintf("%.2f", d.NarratedValue),
					fmt.Sprintf("%.1f%%", d.DifferencePct),
					d.Severity,
				})
			}
			Table([]string{"Op", "Computed", "Narrated", "Difference", "Severity"}, rows)
			return nil
		},
	}
}
