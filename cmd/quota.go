package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show this month's resource usage",
	RunE:  runQuota,
}

var flagQuotaRecent int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent queries",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&flagQuotaRecent, "limit", "n", 10, "number of entries")
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(historyCmd)
}

func runQuota(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	user, err := userID()
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.cleanup()

	rec, err := a.ledger.Get(ctx, user)
	if err != nil {
		return err
	}

	fmt.Printf("Quota for %s (%s)\n", rec.UserID, rec.MonthYear)
	fmt.Printf("  documents: %d / %d\n", rec.DocumentsCount, rec.Limits.MaxDocuments)
	fmt.Printf("  queries:   %d / %d\n", rec.QueriesCount, rec.Limits.MaxQueriesPerMonth)
	fmt.Printf("  domains:   %d / %d\n", rec.DomainsCount, rec.Limits.MaxDomains)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	user, err := userID()
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.cleanup()

	entries, err := a.querylog.RecentByUser(ctx, user, flagQuotaRecent)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No queries yet.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%s  %4dms  %s\n",
			e.CreatedAt.Format("2006-01-02 15:04"), e.LatencyMS, e.QueryText)
	}
	return nil
}
