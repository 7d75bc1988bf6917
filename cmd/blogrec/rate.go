package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rushteam/blogrec/core"
)

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Rate a post",
	Long:  `Record a rating (clamped to [0, 5]) and print the post's new average.`,
	RunE:  withApp(runRate),
}

var (
	rateUser  int64
	ratePost  int64
	rateScore float64
)

func init() {
	rootCmd.AddCommand(rateCmd)
	rateCmd.Flags().Int64VarP(&rateUser, "user", "u", 0, "User id")
	rateCmd.Flags().Int64Var(&ratePost, "post", 0, "Post id")
	rateCmd.Flags().Float64VarP(&rateScore, "score", "s", 0, "Rating between 0 and 5")
	_ = rateCmd.MarkFlagRequired("user")
	_ = rateCmd.MarkFlagRequired("post")
	_ = rateCmd.MarkFlagRequired("score")
}

func runRate(cmd *cobra.Command, a *app, _ []string) error {
	mean, err := a.db.UpsertRating(cmd.Context(), core.Rating{
		UserID: rateUser,
		PostID: ratePost,
		Score:  rateScore,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Post %d now averages %s\n", ratePost, scoreStyle.Render(fmt.Sprintf("%.2f", mean)))
	return nil
}
