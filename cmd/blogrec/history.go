package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the posts a user has rated",
	RunE:  withApp(runHistory),
}

var historyUser int64

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int64VarP(&historyUser, "user", "u", 0, "User id")
	_ = historyCmd.MarkFlagRequired("user")
}

func runHistory(cmd *cobra.Command, a *app, _ []string) error {
	entries, err := a.db.UserHistory(cmd.Context(), historyUser)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "User %d has not rated any posts.\n", historyUser)
		return nil
	}
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf(" %-6s  %-6s  %-16s  %s", "ID", "RATING", "CATEGORY", "TITLE")))
	fmt.Fprintln(out, strings.Repeat("─", 80))
	for _, e := range entries {
		fmt.Fprintf(out, " %s  %s  %s  %s\n",
			idStyle.Render(fmt.Sprintf("%-6d", e.PostID)),
			scoreStyle.Render(fmt.Sprintf("%-6.1f", e.Score)),
			catStyle.Render(fmt.Sprintf("%-16s", truncate(e.Category, 16))),
			truncate(e.Title, 50),
		)
	}
	return nil
}
