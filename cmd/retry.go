package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Embed documents that are still pending",
	Long: `Retry picks up documents stored without an embedding (because
the provider was down or rate limited during ingestion) and attaches
their vectors. Safe to run repeatedly, from cron included.`,
	RunE: runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.cleanup()

	ing, err := a.ingestor()
	if err != nil {
		return err
	}

	attached, err := ing.RetryPending(ctx)
	if err != nil {
		return err
	}
	if attached == 0 {
		fmt.Println("Nothing pending.")
		return nil
	}
	fmt.Printf("Embedded %d pending document(s).\n", attached)
	return nil
}
