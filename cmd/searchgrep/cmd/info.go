package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show vector store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := openRuntime()
			if err != nil {
				return err
			}

			info := rt.Store.GetInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "name:        %s\n", info.Name)
			fmt.Fprintf(cmd.OutOrStdout(), "files:       %d\n", info.FileCount)
			fmt.Fprintf(cmd.OutOrStdout(), "total size:  %d bytes\n", info.TotalSize)
			fmt.Fprintf(cmd.OutOrStdout(), "last update: %s\n", time.UnixMilli(info.LastUpdated).Format(time.RFC3339))
			return nil
		},
	}
	return cmd
}
