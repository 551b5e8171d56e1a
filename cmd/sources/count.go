package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of stored sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sources, closeDB, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer closeDB()

		total, err := sources.CountSources(ctx)
		if err != nil {
			return fmt.Errorf("count sources: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(countCmd)
}
