package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	flagSearchDomains []string
	flagSearchTopK    int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search your knowledge with hybrid ranking",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringSliceVarP(&flagSearchDomains, "domain", "d", nil, "domain ids to search (required, repeatable)")
	searchCmd.Flags().IntVarP(&flagSearchTopK, "top", "k", 10, "maximum results")
	_ = searchCmd.MarkFlagRequired("domain")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	domainIDs, err := parseDomainIDs(flagSearchDomains)
	if err != nil {
		return err
	}

	user, err := userID()
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.cleanup()

	searcher, err := a.searcher()
	if err != nil {
		return err
	}

	query := strings.Join(args, " ")
	matches, err := searcher.Search(ctx, user, domainIDs, query, flagSearchTopK)
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for i, m := range matches {
		title := m.Document.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%2d. [%.3f] %s  %s\n", i+1, m.Score, title, m.Document.ID)
		fmt.Printf("    %s\n", snippet(m.Document.Content, 120))
	}
	return nil
}

func parseDomainIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid domain id %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func snippet(content string, max int) string {
	content = strings.Join(strings.Fields(content), " ")
	if len(content) <= max {
		return content
	}
	return content[:max] + "..."
}
