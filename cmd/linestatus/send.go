package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"linestatus/internal/channel"
	"linestatus/internal/command"
	"linestatus/internal/config"
)

var sendNoCheck bool

var sendCmd = &cobra.Command{
	Use:   "send VALUE|NAME:VALUE",
	Short: "Send an update to a running instance",
	Long: `Writes one update command to $XDG_RUNTIME_DIR/linestatus-<type>.sock.

  linestatus send 75
  linestatus send --type laptop brightness:40`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := os.Getenv("XDG_RUNTIME_DIR")
		if dir == "" {
			return fmt.Errorf("XDG_RUNTIME_DIR not set")
		}
		return send(channel.SocketPath(dir, typeOrDefault()), args[0], !sendNoCheck)
	},
}

func typeOrDefault() string {
	if channelType != "" {
		return channelType
	}
	return config.DefaultType
}

// send dials the update socket and writes msg as one command.
func send(path, msg string, check bool) error {
	if check {
		if len(msg) > command.MaxLen {
			return fmt.Errorf("command longer than %d bytes", command.MaxLen)
		}
		if _, err := command.Parse([]byte(msg)); err != nil {
			return err
		}
	}

	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return fmt.Errorf("connect %s: %w", path, err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
