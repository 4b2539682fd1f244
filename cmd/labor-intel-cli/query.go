package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/atlasworkforce/labor-intel/pkg/engine"
)

// newQueryCmd creates the one-shot query subcommand.
func newQueryCmd() *cobra.Command {
	var (
		sessionID string
		csvOut    string
		noIndex   bool
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a single question about the dataset",
		Long: `Query routes the question through classification, optional semantic
search, de-duplication-aware aggregation, narration, and arithmetic
validation, then prints the answer.

With --csv-out the supporting data is also written as a CSV file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			a, err := buildApp(ctx, !noIndex)
			if err != nil {
				return err
			}
			defer a.Close()

			if sessionID == "" {
				sessionID = uuid.NewString()
			}

			sp := NewSpinner("Thinking")
			sp.Start()
			resp, err := a.engine.ProcessQuery(ctx, sessionID, args[0])
			sp.Stop()
			if err != nil {
				return fmt.Errorf("process query: %w", err)
			}

			if csvOut != "" && resp.CSV != nil {
				data, err := resp.CSV.Bytes()
				if err != nil {
					return fmt.Errorf("render csv: %w", err)
				}
				if err := os.WriteFile(csvOut, data, 0o644); err != nil {
					return fmt.Errorf("write csv: %w", err)
				}
				Success("Wrote %s (%s tier)", csvOut, resp.CSV.Tier)
			}

			return printResponse(resp)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session ID for scoped follow-up queries")
	cmd.Flags().StringVar(&csvOut, "csv-out", "", "write supporting data to a CSV file")
	cmd.Flags().BoolVar(&noIndex, "no-index", false, "skip building the semantic index")
	return cmd
}

// newChatCmd creates the interactive session subcommand.
func newChatCmd() *cobra.Command {
	var noIndex bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Hold an interactive question/answer session",
		Long: `Chat keeps one session open so that a detected task category scopes
follow-up questions to the matching rows.

Session commands:
  /clear   drop the scoped row filter
  /quit    exit the session`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := buildApp(ctx, !noIndex)
			if err != nil {
				return err
			}
			defer a.Close()

			sessionID := uuid.NewString()
			Info("Session %s. Ask a question, /clear to reset scope, /quit to exit.", sessionID)

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				switch {
				case line == "":
					continue
				case line == "/quit" || line == "/exit":
					return nil
				case line == "/clear":
					a.engine.ClearScope()
					Success("Scope cleared, queries run over the full dataset again")
					continue
				}

				queryCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
				sp := NewSpinner("Thinking")
				sp.Start()
				resp, err := a.engine.ProcessQuery(queryCtx, sessionID, line)
				sp.Stop()
				cancel()
				if err != nil {
					Failure("%v", err)
					continue
				}
				if err := printResponse(resp); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().BoolVar(&noIndex, "no-index", false, "skip building the semantic index")
	return cmd
}

// printResponse renders one engine response for humans or machines.
func printResponse(resp *engine.Response) error {
	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Println()
	fmt.Println(resp.Answer)

	details := []string{fmt.Sprintf("intent=%s", resp.Intent)}
	if resp.Category != "" {
		details = append(details, fmt.Sprintf("category=%s", resp.Category))
	}
	if resp.CacheHit {
		details = append(details, "cached")
	}
	details = append(details, fmt.Sprintf("%dms", resp.LatencyMS))
	Info("%s", strings.Join(details, " "))

	switch {
	case resp.Validation.Computations == 0:
		// nothing to verify for purely narrative answers
	case resp.Validation.Passed:
		Success("Arithmetic check passed (%d computations verified)", resp.Validation.Computations)
	default:
		Warning("Arithmetic check flagged %d discrepancies", resp.Validation.Discrepancies)
		if resp.Report != "" {
			fmt.Println(resp.Report)
		}
		if resp.Corrected {
			Info("The answer above was corrected to the verified total")
		}
	}

	return nil
}
