package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/machhook/machhook/loader"
	"github.com/machhook/machhook/models"
)

var cmdSections = &cobra.Command{
	Use:   "sections <image>",
	Short: "list an image's segments and sections with their hook class",
	Args:  cobra.ExactArgs(1),
	RunE:  runSections,
}

func init() {
	cmdRoot.AddCommand(cmdSections)
}

func runSections(cmd *cobra.Command, args []string) error {
	file, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	fi, err := loader.ParseFile(file)
	if err != nil {
		return err
	}
	format := loader.MachO{}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	for _, seg := range fi.Segments {
		fmt.Fprintf(w, "%s\t0x%x\t0x%x\t\n", seg.SegName(), seg.Addr, seg.Memsz)
		for _, sect := range seg.Sections {
			kind := ""
			switch format.SectionKind(sect.SegName(), sect.SectName()) {
			case models.KindText:
				kind = color.GreenString("calls")
			case models.KindStub:
				kind = color.YellowString("stubs")
			}
			fmt.Fprintf(w, "  %s\t0x%x\t0x%x\t%s\n", sect.SectName(), sect.Addr, sect.Size, kind)
		}
	}
	return w.Flush()
}
