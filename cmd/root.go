// Package cmd implements the mnemos command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	flagVerbose bool
	flagUser    string
)

var rootCmd = &cobra.Command{
	Use:   "mnemos",
	Short: "mnemos - personal knowledge brain",
	Long: `mnemos ingests your notes, transcripts, and articles into
per-topic domains and answers questions over them with hybrid
semantic + full-text search.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "acting user id (defaults to MNEMOS_USER or $USER)")
}
