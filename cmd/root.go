package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jhon1466/PeerDrop/internal/logging"
	"github.com/jhon1466/PeerDrop/internal/version"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "peerdrop",
	Short: "Peer-to-peer file transfer over WebRTC data channels",
	Long: `PeerDrop sends a file directly between two machines. A small signaling
broker pairs the peers in a room; the file itself travels over an encrypted
WebRTC data channel and never touches the broker.

Run "peerdrop serve" somewhere both peers can reach, then "peerdrop send" on one
machine and "peerdrop receive <room>" on the other.`,
	Version:      version.Version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.ErrorLevel
		if cmd == serveCmd {
			level = zerolog.InfoLevel
		}
		logging.Init(level)
	},
}

// Execute runs the root command with styled help and errors. SIGINT and
// SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := fang.Execute(ctx, rootCmd); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&connFlags.server, "server", "", "Signaling server (host:port, http(s):// or ws(s):// URL)")
	flags.BoolVar(&connFlags.discover, "discover", false, "Find a signaling server on the local network via mDNS")
	flags.StringVar(&connFlags.stun, "stun", "", "Custom STUN server(s), comma separated")
	flags.StringVar(&connFlags.turn, "turn", "", "Custom TURN server")
	flags.StringVar(&connFlags.turnUser, "turn-user", "", "TURN username")
	flags.StringVar(&connFlags.turnPass, "turn-pass", "", "TURN password")
	flags.BoolVar(&connFlags.relay, "relay", false, "Force relay mode (requires a TURN server)")
	rootCmd.MarkFlagsMutuallyExclusive("server", "discover")
}
