package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rushteam/blogrec/engine"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend posts for a user",
	Long: `Recommend posts for a user by fusing content, collaborative and
preference signals. Results are back-filled from popular posts in the
user's preferred categories.`,
	RunE: withApp(runRecommend),
}

var (
	recUser  int64
	recPrefs []string
	recCap   int
)

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().Int64VarP(&recUser, "user", "u", 0, "User id")
	recommendCmd.Flags().StringSliceVarP(&recPrefs, "pref", "p", nil, "Preferred categories for this request")
	recommendCmd.Flags().IntVarP(&recCap, "cap", "n", 0, "Maximum number of results (default: engine.cap)")
	_ = recommendCmd.MarkFlagRequired("user")
}

func runRecommend(cmd *cobra.Command, a *app, _ []string) error {
	resp, err := a.engine.Recommend(cmd.Context(), engine.Request{
		UserID:      recUser,
		Preferences: recPrefs,
		Cap:         recCap,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(resp.Items) == 0 {
		fmt.Fprintln(out, "No recommendations. Rate a few posts or pass --pref.")
		return nil
	}
	printRecommendations(out, resp.Items)

	if resp.Degraded {
		fmt.Fprintln(out, noteStyle.Render("deadline exceeded, showing popular posts"))
	}
	names := make([]string, 0, len(resp.SignalErrors))
	for name := range resp.SignalErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a.log.Debug().Str("source", name).Err(resp.SignalErrors[name]).Msg("signal empty")
	}
	a.log.Debug().Uint64("version", resp.Version).Int("items", len(resp.Items)).Msg("recommend done")
	return nil
}
