package cmd

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jhon1466/PeerDrop/internal/config"
	"github.com/jhon1466/PeerDrop/internal/discovery"
	"github.com/jhon1466/PeerDrop/internal/server"
	"github.com/jhon1466/PeerDrop/internal/ui"
)

var (
	flagListen   string
	flagMDNS     bool
	flagMDNSName string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling broker",
	Long: `Run the WebSocket signaling broker that pairs senders and receivers.
The broker only relays room and negotiation messages; file data flows peer to peer.

Examples:
  peerdrop serve
  peerdrop serve --listen :8080
  peerdrop serve --mdns`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	cfg, err := config.Load(config.Options{ListenAddr: flagListen})
	if err != nil {
		return err
	}

	srv := server.New(cfg.ListenAddr)
	ready := make(chan net.Addr, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, ready)
	}()

	var addr net.Addr
	select {
	case addr = <-ready:
	case err := <-errCh:
		return fmt.Errorf("start server: %w", err)
	}

	fmt.Println(ui.ServerInfoView(displayAddr(addr), flagMDNS))
	ui.PrintInfo("Press Ctrl+C to stop")

	if flagMDNS {
		go announce(ctx, addr)
	}

	return <-errCh
}

func announce(ctx context.Context, addr net.Addr) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return
	}

	name := flagMDNSName
	if name == "" {
		host, _ := os.Hostname()
		name = "PeerDrop"
		if host != "" {
			name = "PeerDrop on " + host
		}
	}

	if err := discovery.Announce(ctx, name, tcp.Port); err != nil {
		log.Error().Err(err).Msg("mDNS announcement stopped")
	}
}

// displayAddr replaces an unspecified listen host with localhost.
func displayAddr(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return addr.String()
	}
	if tcp.IP == nil || tcp.IP.IsUnspecified() {
		return fmt.Sprintf("localhost:%d", tcp.Port)
	}
	return tcp.String()
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "Listen address (default :$PORT or :3001)")
	serveCmd.Flags().BoolVar(&flagMDNS, "mdns", false, "Announce the broker on the local network")
	serveCmd.Flags().StringVar(&flagMDNSName, "mdns-name", "", "mDNS instance name (default \"PeerDrop on <hostname>\")")
}
