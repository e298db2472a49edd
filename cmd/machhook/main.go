// The machhook tool inspects Mach-O images the way the hooking runtime
// sees them: symbol tables, section classification, symbol resolution
// against a slide, and dry-run hook installs on a synthetic process.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagVerbose bool

var cmdRoot = &cobra.Command{
	Use:   "machhook",
	Short: "inspect and dry-run the call hooking machinery",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			log.SetLevel(log.DebugLevel)
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cmdRoot.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}
