package cmd

import (
	"github.com/dobrakmato/asset-server/pkg/exttools"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open [file]",
	Short: "Open the library root, or a single file within it, in an external program",
	Long: `Opens the configured library root (or a given file inside it) using the
OS default handler, or the program configured for that file's extension in
the settings file's external_tools map. Gated by allow_external_tools.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		settings := mustLoadSettings()
		tools := exttools.New(settings)

		if len(args) == 0 {
			tools.OpenLibraryRoot()
			return
		}
		tools.EditFile(args[0])
	},
}

func init() {
	rootCmd.AddCommand(openCmd)
}
