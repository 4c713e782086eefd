package main

import (
	"errors"
	"fmt"
	"io"

	"9fans.net/go/plan9"
	"9fans.net/go/plan9/client"
	"github.com/spf13/cobra"

	"linestatus/internal/p9"
	"linestatus/internal/pidfile"
)

var statusCmd = &cobra.Command{
	Use:          "status",
	Short:        "Show whether an instance is running and its element values",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ := typeOrDefault()
		pid, err := pidfile.Lookup(pidfile.Path(typ))
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "linestatus %s is %v\n", typ, err)
			return errors.New("not running")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "linestatus %s is running (PID %d)\n", typ, pid)

		fs, err := client.MountService(p9.ServiceName(typ))
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "9P status unavailable: %v\n", err)
			return nil
		}
		defer fs.Close()

		list, err := readFile(fs, "list")
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(list)
		return err
	},
}

func readFile(fs *client.Fsys, path string) ([]byte, error) {
	fid, err := fs.Open(path, plan9.OREAD)
	if err != nil {
		return nil, err
	}
	defer fid.Close()
	return io.ReadAll(fid)
}
