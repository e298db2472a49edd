package main

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/machhook/machhook"
)

var cmdAlloc = &cobra.Command{
	Use:   "alloc",
	Short: "probe for an executable trampoline page and report where it landed",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		pagesize := os.Getpagesize()
		page, err := machhook.AllocExecPage(pagesize, 0x90)
		if err != nil {
			return err
		}
		addr := uintptr(unsafe.Pointer(&page[0]))
		fmt.Printf("%s 0x%x-0x%x\n", color.GreenString("rwx page at"), addr, addr+uintptr(pagesize))
		return machhook.FreePage(page)
	},
}

func init() {
	cmdRoot.AddCommand(cmdAlloc)
}
