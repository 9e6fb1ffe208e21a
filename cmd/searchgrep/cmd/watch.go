package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/searchgrep/searchgrep/internal/hash"
	"github.com/searchgrep/searchgrep/internal/scanner"
	"github.com/searchgrep/searchgrep/internal/store"
	"github.com/searchgrep/searchgrep/internal/watcher"
)

// upsertHandler adapts the VectorStore to watcher.Handler: it reads and
// hashes the changed file before delegating to Store.UpsertFile, or calls
// Store.DeleteFile on removal.
type upsertHandler struct {
	root string
	st   *store.Store
}

func (h *upsertHandler) HandleUpsert(ctx context.Context, relPath string) error {
	full := filepath.Join(h.root, filepath.FromSlash(relPath))
	content, err := os.ReadFile(full)
	if err != nil {
		return err
	}
	info, err := os.Stat(full)
	if err != nil {
		return err
	}
	sum := hash.Hash(content)
	return h.st.UpsertFile(ctx, relPath, string(content), sum, info.Size(), info.ModTime().UnixMilli())
}

func (h *upsertHandler) HandleDelete(_ context.Context, relPath string) error {
	return h.st.DeleteFile(relPath)
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the current tree and keep the vector store in sync",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, root, err := openRuntime()
			if err != nil {
				return err
			}

			walker, err := scanner.New()
			if err != nil {
				return err
			}

			handler := &upsertHandler{root: root, st: rt.Store}
			w, err := watcher.New(root, func(relPath string, isDir bool) bool {
				return walker.ShouldIgnore(root, relPath, isDir)
			}, handler)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			fmt.Fprintf(cmd.OutOrStdout(), "watching %s (ctrl-c to stop)\n", root)
			return w.Run(ctx)
		},
	}
	return cmd
}
