package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	debug      bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:     "asset-server",
	Short:   "asset-server - library watcher, compiler scheduler and catalog API for game assets",
	Version: "v0.1.0",
	Long:    "asset-server - library watcher, compiler scheduler and catalog API for game assets",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI '%s'", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to settings JSON file (overrides ASSET_SERVER_SETTINGS)")
}
