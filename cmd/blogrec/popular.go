package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var popularCmd = &cobra.Command{
	Use:   "popular",
	Short: "List posts by average rating",
	RunE:  withApp(runPopular),
}

var popularLimit int

func init() {
	rootCmd.AddCommand(popularCmd)
	popularCmd.Flags().IntVarP(&popularLimit, "limit", "n", 20, "Number of posts to show")
}

func runPopular(cmd *cobra.Command, a *app, _ []string) error {
	items, err := a.engine.Popular(cmd.Context(), popularLimit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No rated posts yet. Run 'blogrec import ratings' first.")
		return nil
	}
	printRecommendations(cmd.OutOrStdout(), items)
	return nil
}
