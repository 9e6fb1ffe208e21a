package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/retriever"
)

func newSearchCmd() *cobra.Command {
	var topK int
	var hybrid bool
	var fileTypes string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the vector store for matching chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			rt, _, err := openRuntime()
			if err != nil {
				return err
			}
			embedder, err := rt.Embedder()
			if err != nil {
				return err
			}

			r := retriever.New(rt.Store, embedder)
			results, err := r.Search(cmd.Context(), query, topK, retriever.Options{
				Hybrid:    hybrid,
				FileTypes: splitCommaList(fileTypes),
			})
			if err != nil {
				return err
			}

			printResults(cmd, results)
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 10, "maximum number of results")
	cmd.Flags().BoolVar(&hybrid, "hybrid", true, "fuse dense and lexical (BM25) retrieval")
	cmd.Flags().StringVar(&fileTypes, "file-types", "", "comma-separated list of file extensions to restrict to")

	return cmd
}

func printResults(cmd *cobra.Command, results []retriever.Result) {
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no results")
		return
	}
	for i, res := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%d. %s (lines %d-%d) score=%.4f\n",
			i+1, res.Path, res.LineStart, res.LineEnd, res.Score)
		fmt.Fprintln(cmd.OutOrStdout(), indent(res.ChunkContent))
	}
}

func splitCommaList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
