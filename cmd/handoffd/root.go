package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "handoffd",
	Short: "Serve files registered at runtime, each exactly once",
	Long: `handoffd hosts the handoff server: files registered under a path are
downloadable once at that path and then forgotten.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (.toml or .yaml); HANDOFF_CONFIG when unset")
	rootCmd.AddCommand(newServeCmd())
}
