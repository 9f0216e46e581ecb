package cmd

import (
	"context"
	"log"
	"net/http"

	"github.com/dobrakmato/asset-server/pkg/httpapi"
	"github.com/dobrakmato/asset-server/pkg/mcpapi"
	"github.com/dobrakmato/asset-server/pkg/watcher"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr string
	serveMCP  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the asset server: watcher, compiler scheduler and HTTP API",
	Long: `Loads settings, opens the catalog, starts the filesystem watcher (if
enabled), runs an initial full rescan, then serves the HTTP API described in
the asset-server protocol (asset/compilation CRUD plus the SSE event stream).`,
	Run: func(cmd *cobra.Command, args []string) {
		if debug {
			log.SetFlags(log.Ltime | log.Lshortfile)
		}
		log.Println("Starting asset server...")

		settings := mustLoadSettings()
		svc, err := buildServices(settings)
		if err != nil {
			log.Fatalf("asset-server: cannot start: %v", err)
		}
		defer svc.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if settings.Watch {
			w := watcher.New(svc.library, svc.ops, settings.AutoCompile)
			if err := w.Start(); err != nil {
				log.Fatalf("asset-server: cannot start watcher: %v", err)
			}
			defer w.Stop()
		}

		results := svc.ops.Refresh(ctx)
		log.Printf("Initial scan: %d scanned, %d imported, %d removed, %d dirty",
			results.Scanned, results.Imported, results.Removed, len(results.Dirty))

		if serveMCP {
			go runMCPServer(svc)
		}

		httpServer := httpapi.New(svc.ops, svc.events)
		log.Printf("Listening on %s", serveAddr)
		if err := http.ListenAndServe(serveAddr, httpServer); err != nil {
			log.Fatalf("asset-server: HTTP server error: %v", err)
		}
	},
}

func runMCPServer(svc *services) {
	s := server.NewMCPServer("asset-server", "v0.1.0", server.WithToolCapabilities(false))
	mcpapi.RegisterAll(s, svc.ops)
	if err := server.ServeStdio(s); err != nil {
		log.Printf("asset-server: MCP server error: %v", err)
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8137", "HTTP listen address")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also run the MCP tool server over stdio alongside the HTTP API")
	rootCmd.AddCommand(serveCmd)
}
