package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rushteam/blogrec/importer"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import posts, ratings or preferences from CSV",
}

var importCategories []string

func init() {
	rootCmd.AddCommand(importCmd)

	postsCmd := &cobra.Command{
		Use:   "posts <file.csv>",
		Short: "Import posts (id,title,content,category[,created_at])",
		Args:  cobra.ExactArgs(1),
		RunE:  withApp(runImportPosts),
	}
	postsCmd.Flags().StringSliceVar(&importCategories, "category", nil, "Only keep posts in these categories")

	importCmd.AddCommand(
		postsCmd,
		&cobra.Command{
			Use:   "ratings <file.csv>",
			Short: "Import ratings (user_id,post_id,rating)",
			Args:  cobra.ExactArgs(1),
			RunE:  withApp(runImportRatings),
		},
		&cobra.Command{
			Use:   "preferences <file.csv>",
			Short: "Import preferences (user_id,top_topics)",
			Args:  cobra.ExactArgs(1),
			RunE:  withApp(runImportPreferences),
		},
	)
}

func openCSV(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func reportSkipped(a *app, file string, skipped []importer.Skip) {
	for _, s := range skipped {
		a.log.Warn().Str("file", file).Int("line", s.Line).Str("reason", s.Reason).Msg("row skipped")
	}
}

func runImportPosts(cmd *cobra.Command, a *app, args []string) error {
	f, err := openCSV(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := importer.ReadPosts(f, importer.PostOptions{AllowedCategories: importCategories})
	if err != nil {
		return err
	}
	reportSkipped(a, args[0], res.Skipped)
	n, err := a.db.InsertPosts(cmd.Context(), res.Rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d posts (%d duplicates, %d rows skipped)\n",
		n, len(res.Rows)-n, len(res.Skipped))
	return nil
}

func runImportRatings(cmd *cobra.Command, a *app, args []string) error {
	f, err := openCSV(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := importer.ReadRatings(f)
	if err != nil {
		return err
	}
	reportSkipped(a, args[0], res.Skipped)
	written, unknown, err := a.db.AddRatings(cmd.Context(), res.Rows)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d ratings (%d for unknown posts, %d rows skipped)\n",
		written, unknown, len(res.Skipped))
	return nil
}

func runImportPreferences(cmd *cobra.Command, a *app, args []string) error {
	f, err := openCSV(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := importer.ReadPreferences(f)
	if err != nil {
		return err
	}
	reportSkipped(a, args[0], res.Skipped)
	for _, p := range res.Rows {
		if err := a.db.SetPreferences(cmd.Context(), p.UserID, p.Categories); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported preferences for %d users (%d rows skipped)\n",
		len(res.Rows), len(res.Skipped))
	return nil
}
