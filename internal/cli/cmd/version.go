package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/crossrepo/pkg/version"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display the version of crossrepo",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("crossrepo %s (commit %s, built %s)\n",
				version.Version(), version.Commit(), version.BuildDate())
		},
	}
}
