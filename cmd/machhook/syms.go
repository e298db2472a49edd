package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/lunixbochs/fvbommel-util/sortorder"
	"github.com/spf13/cobra"

	"github.com/machhook/machhook/loader"
	"github.com/machhook/machhook/models"
)

var (
	symsByName bool
	symsSlide  int64
)

var cmdSyms = &cobra.Command{
	Use:   "syms <image>",
	Short: "list an image's symbol table",
	Args:  cobra.ExactArgs(1),
	RunE:  runSyms,
}

func init() {
	cmdSyms.Flags().BoolVarP(&symsByName, "name", "n", false, "sort by name instead of address")
	cmdSyms.Flags().Int64Var(&symsSlide, "slide", 0, "apply a relocation slide")
	cmdRoot.AddCommand(cmdSyms)
}

type symRow struct {
	sym   models.Symbol
	undef bool
}

func runSyms(cmd *cobra.Command, args []string) error {
	file, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	tab, err := loader.MachO{}.Symtab(file)
	if err != nil {
		return err
	}
	rows := make([]symRow, 0, tab.Len())
	for i := 0; i < tab.Len(); i++ {
		rows = append(rows, symRow{
			sym:   tab.At(i, symsSlide),
			undef: tab.Entry(i).Sect == 0,
		})
	}
	if symsByName {
		sort.SliceStable(rows, func(i, j int) bool {
			return sortorder.NaturalLess(rows[i].sym.Name, rows[j].sym.Name)
		})
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	for _, r := range rows {
		name := r.sym.Name
		if r.undef {
			name = color.YellowString("%s (undef)", name)
		}
		fmt.Fprintf(w, "0x%x\t0x%x\t%s\n", r.sym.Addr, r.sym.Size, name)
	}
	return w.Flush()
}
