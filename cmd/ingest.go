package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/mnemos/mnemos/internal/ingest"
	"github.com/spf13/cobra"
)

var (
	flagIngestDomain string
	flagIngestTitle  string
	flagIngestTags   []string
	flagIngestFile   string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [content]",
	Short: "Ingest content into a domain",
	Long: `Ingest stores content in a domain and embeds it for semantic
search. Content comes from the argument, --file, or stdin. Identical
content is deduplicated and consumes no quota.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&flagIngestDomain, "domain", "d", "", "target domain id (required)")
	ingestCmd.Flags().StringVarP(&flagIngestTitle, "title", "t", "", "document title")
	ingestCmd.Flags().StringSliceVar(&flagIngestTags, "tags", nil, "comma-separated tags")
	ingestCmd.Flags().StringVarP(&flagIngestFile, "file", "f", "", "read content from file instead of argument")
	_ = ingestCmd.MarkFlagRequired("domain")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	domainID, err := uuid.Parse(flagIngestDomain)
	if err != nil {
		return fmt.Errorf("invalid domain id %q: %w", flagIngestDomain, err)
	}

	content, err := readContent(args)
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

	ing, err := a.ingestor()
	if err != nil {
		return err
	}

	res, err := ing.Ingest(ctx, ingest.Item{
		DomainID:    domainID,
		OwnerUserID: user,
		Title:       flagIngestTitle,
		Content:     content,
		Tags:        flagIngestTags,
	})
	if err != nil {
		return err
	}

	switch res.Status {
	case ingest.StatusSkipped:
		fmt.Printf("Unchanged, already stored as %s\n", res.Document.ID)
	case ingest.StatusUpdated:
		fmt.Printf("Updated %s\n", res.Document.ID)
	case ingest.StatusPending:
		fmt.Printf("Stored %s (embedding pending, run 'mnemos retry' later)\n", res.Document.ID)
	default:
		fmt.Printf("Stored %s\n", res.Document.ID)
	}

	if err := a.store.RefreshDocumentCount(ctx, domainID); err != nil {
		a.logger.Warn("refreshing document count failed", "domain_id", domainID, "error", err)
	}
	return nil
}

func readContent(args []string) (string, error) {
	switch {
	case flagIngestFile != "":
		data, err := os.ReadFile(flagIngestFile)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", flagIngestFile, err)
		}
		return string(data), nil
	case len(args) == 1:
		return args[0], nil
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			return "", fmt.Errorf("no content given: pass an argument, --file, or pipe to stdin")
		}
		return content, nil
	}
}
