package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/machhook/machhook/machogen"
)

var cmdGen = &cobra.Command{
	Use:   "gen <out>",
	Short: "write a small hookable demo image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := machogen.Demo()
		if err != nil {
			return err
		}
		if err := os.WriteFile(args[0], file, 0644); err != nil {
			return err
		}
		fmt.Printf("%s (%d bytes)\n", color.GreenString(args[0]), len(file))
		return nil
	},
}

func init() {
	cmdRoot.AddCommand(cmdGen)
}
