package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mnemos/mnemos/internal/knowledge"
)

var domainCmd = &cobra.Command{
	Use:   "domain",
	Short: "Manage knowledge domains",
}

var domainCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainCreate,
}

var domainShowCmd = &cobra.Command{
	Use:   "show [domain-id]",
	Short: "Show a domain and its usage statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runDomainShow,
}

func init() {
	domainCmd.AddCommand(domainCreateCmd)
	domainCmd.AddCommand(domainShowCmd)
	rootCmd.AddCommand(domainCmd)
}

func runDomainCreate(cmd *cobra.Command, args []string) error {
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

	// Domain creation is quota guarded like documents and queries.
	if _, err := a.ledger.Reserve(ctx, user, knowledge.ResourceDomain); err != nil {
		return err
	}

	domain, err := a.store.CreateDomain(ctx, user, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Created domain %q\n", domain.Name)
	fmt.Printf("  id: %s\n", domain.ID)
	return nil
}

func runDomainShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	domainID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid domain id %q: %w", args[0], err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.cleanup()

	domain, err := a.store.GetDomain(ctx, domainID)
	if err != nil {
		return err
	}

	fmt.Printf("Domain %q (%s)\n", domain.Name, domain.ID)
	fmt.Printf("  owner:       %s\n", domain.OwnerUserID)
	fmt.Printf("  documents:   %d\n", domain.TotalDocuments)
	fmt.Printf("  queries:     %d\n", domain.TotalQueries)
	if domain.LastQueryAt != nil {
		fmt.Printf("  last query:  %s\n", domain.LastQueryAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
