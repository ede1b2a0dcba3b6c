package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ternarybob/decatholac/internal/storage"
)

var (
	chaptersManga string
	chaptersLimit int
)

var chaptersCmd = &cobra.Command{
	Use:   "chapters",
	Short: "List stored chapters, newest first",
	RunE:  runChapters,
}

func init() {
	chaptersCmd.Flags().StringVar(&chaptersManga, "manga", "", "Only chapters of this target")
	chaptersCmd.Flags().IntVarP(&chaptersLimit, "limit", "n", 20, "Maximum chapters to list (0 for all)")
}

func runChapters(cmd *cobra.Command, args []string) error {
	if err := loadConfig(false); err != nil {
		return err
	}

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return err
	}
	defer storageManager.Close()

	ctx := context.Background()
	chapters, err := storageManager.ChapterStorage().ListChapters(ctx, chaptersManga, chaptersLimit)
	if err != nil {
		return err
	}
	total, err := storageManager.ChapterStorage().CountChapters(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tMANGA\tTITLE\tURL")
	for _, chapter := range chapters {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", chapter.Date.Format("2006-01-02"), chapter.Manga, chapter.Title, chapter.URL)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d chapters\n", len(chapters), total)
	return nil
}
