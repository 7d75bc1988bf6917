package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rushteam/blogrec/pkg/textproc"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <text>...",
	Short: "Show how post content is normalized before indexing",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNormalize,
}

var (
	normStopwords bool
	normLemmatize bool
	normStem      bool
)

func init() {
	rootCmd.AddCommand(normalizeCmd)
	normalizeCmd.Flags().BoolVar(&normStopwords, "stopwords", true, "Drop English stopwords")
	normalizeCmd.Flags().BoolVar(&normLemmatize, "lemmatize", true, "Reduce words to their dictionary form")
	normalizeCmd.Flags().BoolVar(&normStem, "stem", false, "Reduce words to their snowball stem")
}

func runNormalize(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")
	fmt.Fprintln(cmd.OutOrStdout(), textproc.Normalize(text, normStopwords, normLemmatize, normStem))
	return nil
}
