package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/scanner"
	"github.com/searchgrep/searchgrep/internal/synchronizer"
)

func newSyncCmd() *cobra.Command {
	var dryRun bool
	var concurrency int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Index the current tree into the vector store",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, root, err := openRuntime()
			if err != nil {
				return err
			}

			walker, err := scanner.New()
			if err != nil {
				return err
			}

			result, err := synchronizer.Sync(cmd.Context(), rt.Store, walker, root, synchronizer.Options{
				DryRun:      dryRun,
				Concurrency: concurrency,
				OnProgress: func(p synchronizer.Progress) {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d\n", p.Phase, p.Completed, p.Total)
				},
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "uploaded=%d deleted=%d skipped=%d errors=%d duration=%dms\n",
				result.Uploaded, result.Deleted, result.Skipped, len(result.Errors), result.DurationMs)
			for _, e := range result.Errors {
				fmt.Fprintf(cmd.OutOrStdout(), "  error: %s: %v\n", e.Path, e.Err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report intended changes without mutating the store")
	cmd.Flags().IntVar(&concurrency, "concurrency", synchronizer.DefaultConcurrency, "upload fan-out width")
	return cmd
}
