package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/answer"
	"github.com/searchgrep/searchgrep/internal/retriever"
)

func newAskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Search the vector store and synthesize a natural-language answer",
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
			chat, err := rt.Chat()
			if err != nil {
				return err
			}

			r := retriever.New(rt.Store, embedder)
			results, err := r.Search(cmd.Context(), query, topK, retriever.Options{Hybrid: true})
			if err != nil {
				return err
			}

			a := answer.New(chat)
			reply, err := a.Ask(cmd.Context(), query, results)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}

	cmd.Flags().IntVar(&topK, "top-k", 10, "number of chunks to retrieve as context")
	return cmd
}
