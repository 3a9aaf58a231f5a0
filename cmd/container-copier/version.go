package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/containercopier/container-copier/internal/version"
)

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.stdout, "container-copier %s\n", version.Read())
		},
	}
}
