package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "shuttle",
	Short:         "Cross-process share ingestion and handoff",
	Long:          "shuttle collects shared links, text, and files, normalizes them into inbox records, and hands them off to the consuming application.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(wakeCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
