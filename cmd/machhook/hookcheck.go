package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/machhook/machhook"
	"github.com/machhook/machhook/machogen"
	"github.com/machhook/machhook/models"
)

var (
	hookSlide  int64
	hookTramp  uint64
	hookMarker string
)

var cmdHookcheck = &cobra.Command{
	Use:   "hookcheck <image> <symbol>",
	Short: "dry-run a hook install on the image inside a synthetic process",
	Long: `hookcheck maps the image into a synthetic process at the given slide,
binds its stub slots the way the loader would, boots on it, and installs a
hook for the symbol. No real memory is patched; use -v to watch the walk.`,
	Args: cobra.ExactArgs(2),
	RunE: runHookcheck,
}

func init() {
	cmdHookcheck.Flags().Int64Var(&hookSlide, "slide", 0x10000, "map the image at this slide")
	cmdHookcheck.Flags().Uint64Var(&hookTramp, "tramp", 0, "trampoline address (default: past the image)")
	cmdHookcheck.Flags().StringVar(&hookMarker, "marker", "", "marker symbol for boot (default: the hooked symbol)")
	cmdRoot.AddCommand(cmdHookcheck)
}

func runHookcheck(cmd *cobra.Command, args []string) error {
	file, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	symbol := args[1]
	proc := machogen.NewProcess()
	img, err := proc.Map(file, args[0], hookSlide)
	if err != nil {
		return err
	}
	if err := proc.BindSlots(img); err != nil {
		return err
	}
	marker := hookMarker
	if marker == "" {
		marker = symbol
	}
	p, err := machhook.Boot(proc, &models.Config{MarkerSymbol: marker})
	if err != nil {
		return err
	}
	tramp := hookTramp
	if tramp == 0 {
		tramp = uint64(int64(0x40000000) + hookSlide)
	}
	err = p.InstallHook(symbol, &models.Trampoline{Addr: tramp})
	switch {
	case errors.Is(err, machhook.ErrNoPatchSites):
		fmt.Println(color.YellowString("no patch sites for %s", symbol))
		return nil
	case err != nil:
		return err
	}
	fmt.Printf("%s -> 0x%x\n", color.GreenString("hooked %s", symbol), tramp)
	return nil
}
