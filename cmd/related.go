package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mnemos/mnemos/internal/search"
)

var flagRelatedMax int

var relatedCmd = &cobra.Command{
	Use:   "related [document-id]",
	Short: "Find documents similar to a stored document",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelated,
}

func init() {
	relatedCmd.Flags().IntVarP(&flagRelatedMax, "max", "m", 5, "maximum results")
	rootCmd.AddCommand(relatedCmd)
}

func runRelated(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	docID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", args[0], err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.cleanup()

	finder := search.NewRelatedFinder(a.store, a.logger.With("component", "related"))
	matches, err := finder.Related(ctx, docID, flagRelatedMax)
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		fmt.Println("No related documents (the source may not be embedded yet).")
		return nil
	}
	for i, m := range matches {
		title := m.Document.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%2d. [%.3f] %s  %s\n", i+1, m.Score, title, m.Document.ID)
	}
	return nil
}
