package cmd

import (
	"context"
	"log"
	"time"

	"github.com/dobrakmato/asset-server/pkg/compiler"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var compileAll bool

var compileCmd = &cobra.Command{
	Use:   "compile [identifier...]",
	Short: "Compile one or more assets by identifier, or every dirty asset with --all",
	Long: `Enqueues the given asset identifiers (or, with --all, every currently
dirty asset) for compilation and waits for the scheduler's queue to drain
before exiting. Intended for CI/batch use; the long-running "serve" command
is the normal way to run the scheduler.`,
	Run: func(cmd *cobra.Command, args []string) {
		settings := mustLoadSettings()
		svc, err := buildServices(settings)
		if err != nil {
			log.Fatalf("asset-server: cannot start: %v", err)
		}
		defer svc.Close()

		ctx := context.Background()
		svc.ops.Refresh(ctx)

		var ids []uuid.UUID
		if compileAll {
			ids = svc.ops.GetDirtyAssets()
		} else {
			for _, arg := range args {
				id, err := uuid.Parse(arg)
				if err != nil {
					log.Fatalf("asset-server: invalid identifier %q: %v", arg, err)
				}
				ids = append(ids, id)
			}
		}

		if len(ids) == 0 {
			log.Println("Nothing to compile")
			return
		}

		log.Printf("Enqueuing %d asset(s) for compilation", len(ids))
		svc.ops.CompileAll(ctx, ids)
		waitForQueueDrain(svc.compiler)
		log.Println("Compilation complete")
	},
}

// waitForQueueDrain polls the scheduler's queued counter, since Scheduler
// runs each compile as an independent goroutine with no completion channel
// (spec.md §4.5's "independent cooperative job" design).
func waitForQueueDrain(s *compiler.Scheduler) {
	for s.Queued() > 0 {
		time.Sleep(100 * time.Millisecond)
	}
}

func init() {
	compileCmd.Flags().BoolVar(&compileAll, "all", false, "compile every currently dirty asset instead of specific identifiers")
	rootCmd.AddCommand(compileCmd)
}
