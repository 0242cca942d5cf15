package commands

import (
	"fmt"
	"runtime"

	"github.com/leapstack-labs/leapdb/pkg/adapter"
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display LeapDB version, build information and the available backends.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "LeapDB v%s (%s)\n", version, runtime.Version())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Backends: %v\n", adapter.ListAdapters())
		},
	}
}
