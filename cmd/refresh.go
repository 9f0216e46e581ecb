package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run a single full rescan of the library and exit",
	Long: `Opens the catalog, walks the library once, imports untracked files,
recomputes dirtiness, removes catalog entries for files that no longer
exist, then prints a summary and exits. Does not start the watcher or the
HTTP API.`,
	Run: func(cmd *cobra.Command, args []string) {
		settings := mustLoadSettings()
		svc, err := buildServices(settings)
		if err != nil {
			log.Fatalf("asset-server: cannot start: %v", err)
		}
		defer svc.Close()

		results := svc.ops.Refresh(context.Background())
		log.Printf("Scan complete: %d scanned, %d imported, %d removed, %d dirty",
			results.Scanned, results.Imported, results.Removed, len(results.Dirty))
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
