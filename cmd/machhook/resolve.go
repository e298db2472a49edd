package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/machhook/machhook/loader"
)

var resolveSlide int64

var cmdResolve = &cobra.Command{
	Use:   "resolve <image> <symbol|0xaddr>",
	Short: "resolve a symbol to its address, or an address to its symbol",
	Args:  cobra.ExactArgs(2),
	RunE:  runResolve,
}

func init() {
	cmdResolve.Flags().Int64Var(&resolveSlide, "slide", 0, "apply a relocation slide")
	cmdRoot.AddCommand(cmdResolve)
}

func runResolve(cmd *cobra.Command, args []string) error {
	file, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	tab, err := loader.MachO{}.Symtab(file)
	if err != nil {
		return err
	}
	query := args[1]
	if strings.HasPrefix(query, "0x") {
		addr, err := strconv.ParseUint(query[2:], 16, 64)
		if err != nil {
			return errors.Wrapf(err, "bad address %s", query)
		}
		name, ok := tab.FindAddr(addr, resolveSlide)
		if !ok {
			return errors.Errorf("no symbol at %s", query)
		}
		fmt.Println(color.GreenString(name))
		return nil
	}
	sym, ok := tab.Find(query, resolveSlide)
	if !ok {
		return errors.Errorf("no symbol named %s", query)
	}
	fmt.Printf("%s 0x%x size 0x%x\n", color.GreenString(sym.Name), sym.Addr, sym.Size)
	return nil
}
