package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"linestatus/internal/pidfile"
)

var stopCmd = &cobra.Command{
	Use:          "stop",
	Short:        "Stop a running instance",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ := typeOrDefault()
		pid, err := pidfile.Signal(pidfile.Path(typ), unix.SIGTERM)
		if err != nil {
			return fmt.Errorf("linestatus %s: %w", typ, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to linestatus %s (PID %d)\n", typ, pid)
		return nil
	},
}
