package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/helixir/author-matching-service/internal/temporal"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run and manage batch matching",
	}
	cmd.AddCommand(newBatchRunCommand(ctx))
	cmd.AddCommand(newBatchStatusCommand(ctx))
	cmd.AddCommand(newBatchStopCommand(ctx))
	return cmd
}

func newBatchRunCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var chunkSize int
	var concurrency int
	var local bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Match pending publications",
		Long: "Start a batch matching workflow on the Temporal worker, or with --local run the " +
			"batch in this process against the database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 || chunkSize < 0 || concurrency < 0 {
				return errors.New("--limit, --chunk-size and --concurrency must not be negative")
			}
			cfg, _, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			limit = firstPositive(limit, cfg.Batch.DefaultLimit)
			runID := uuid.New()

			if local {
				components, err := ctx.ensureComponents(cmd.Context())
				if err != nil {
					return err
				}
				summary, err := components.Matcher.RunBatch(cmd.Context(), runID, limit)
				if err != nil {
					return err
				}
				if err := components.Matcher.PublishSummary(cmd.Context(), summary); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
				if asJSON {
					return writeJSON(cmd, summary)
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			}

			client, err := ctx.ensureTemporal()
			if err != nil {
				return err
			}
			handle, err := client.StartBatch(cmd.Context(), temporal.BatchMatchingInput{
				RunID:          runID,
				Limit:          limit,
				ChunkSize:      firstPositive(chunkSize, cfg.Batch.ChunkSize),
				MaxConcurrency: firstPositive(concurrency, cfg.Batch.MaxConcurrency),
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, handle)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started batch %s (run %s)\n", handle.WorkflowID, runID)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum pending publications to match")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Publications per activity")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Activities in flight")
	cmd.Flags().BoolVar(&local, "local", false, "Run in this process instead of on the worker")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newBatchStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <workflow-id>",
		Short: "Show the progress of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureTemporal()
			if err != nil {
				return err
			}
			progress, err := client.BatchProgress(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, progress)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Status:       %s\n", progress.Status)
			fmt.Fprintf(out, "Researchers:  %d\n", progress.Researchers)
			fmt.Fprintf(out, "Publications: %d\n", progress.Publications)
			fmt.Fprintf(out, "Chunks:       %d/%d done, %d failed\n",
				progress.ChunksCompleted, progress.ChunksTotal, progress.ChunksFailed)
			if progress.Summary != nil {
				printSummary(out, progress.Summary)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the progress as JSON")
	return cmd
}

func newBatchStopCommand(ctx *commandContext) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "stop <workflow-id>",
		Short: "Stop a batch after its in-flight chunks finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.ensureTemporal()
			if err != nil {
				return err
			}
			workflowID := strings.TrimSpace(args[0])
			if err := client.StopBatch(cmd.Context(), workflowID, reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stop requested for %s\n", workflowID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "stopped via matchctl", "Reason recorded with the stop signal")
	return cmd
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
