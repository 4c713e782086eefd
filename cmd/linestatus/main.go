// linestatus - draws status values as thin coloured lines on a screen edge
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	channelType string

	// Run flags
	run runFlags

	// Logger
	logger *zap.Logger
)

// rootCmd runs the overlay
var rootCmd = &cobra.Command{
	Use:   "linestatus",
	Short: "Draw status values as thin lines along the screen edge",
	Long: `linestatus shows one or more values (volume, brightness, ...) as thin
coloured lines along the edge of the screen.

Values are sent as "N" or "name:N" (N in 0..100) to the Unix socket
$XDG_RUNTIME_DIR/linestatus-<type>.sock, or on standard input when the socket
cannot be created:

  echo 75 | socat - UNIX-CONNECT:$XDG_RUNTIME_DIR/linestatus-default.sock
  linestatus send volume:75`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runOverlay,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/linestatus/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&channelType, "type", "t", "", "Channel type, selects the socket and 9P service name")

	run.register(rootCmd.Flags())
	rootCmd.SetGlobalNormalizationFunc(normalizeFlag)

	sendCmd.Flags().BoolVar(&sendNoCheck, "no-check", false, "Send without validating the command first")
	configInitCmd.Flags().BoolVar(&configMulti, "multi", false, "Write the volume and brightness preset")
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
