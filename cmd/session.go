package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jhon1466/PeerDrop/internal/config"
	"github.com/jhon1466/PeerDrop/internal/discovery"
	"github.com/jhon1466/PeerDrop/internal/event"
	"github.com/jhon1466/PeerDrop/internal/session"
	"github.com/jhon1466/PeerDrop/internal/transfer"
	"github.com/jhon1466/PeerDrop/internal/ui"
	"github.com/jhon1466/PeerDrop/internal/utils"
)

const (
	discoverTimeout = 5 * time.Second
	peerExitTimeout = 10 * time.Second
)

// connectionFlags are shared by send and receive.
type connectionFlags struct {
	server   string
	discover bool
	stun     string
	turn     string
	turnUser string
	turnPass string
	relay    bool
}

var connFlags connectionFlags

func (f connectionFlags) options() config.Options {
	return config.Options{
		ServerURL:  f.server,
		STUNServer: f.stun,
		TURNServer: f.turn,
		TURNUser:   f.turnUser,
		TURNPass:   f.turnPass,
		ForceRelay: f.relay,
	}
}

// loadConfig merges the connection flags into opts, resolving the server via
// mDNS first when --discover is set.
func loadConfig(ctx context.Context, opts config.Options) (*config.Config, error) {
	base := connFlags.options()
	base.OutputDir = opts.OutputDir
	base.MaxFileSize = opts.MaxFileSize

	if connFlags.discover {
		url, err := discoverServer(ctx)
		if err != nil {
			return nil, err
		}
		base.ServerURL = url
	}

	cfg, err := config.Load(base)
	if err != nil {
		return nil, transfer.NewError("load config", err)
	}
	return cfg, nil
}

func discoverServer(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()

	stop := ui.RunConnectionSpinner("Looking for a broker on the local network...")
	b, err := discovery.Find(ctx)
	stop()
	if err != nil {
		return "", transfer.NewError("discover server", err)
	}

	ui.PrintSuccessf("Found %s at %s", b.Name, b.URL())
	return b.URL(), nil
}

func connect(ctx context.Context, cfg *config.Config) (*session.Session, error) {
	s := session.New(cfg)

	stop := ui.RunConnectionSpinner("Connecting to server...")
	err := s.Connect(ctx)
	stop()
	if err != nil {
		s.Close()
		return nil, transfer.NewError("connect to server", err)
	}
	return s, nil
}

func waitForPeer(ctx context.Context, s *session.Session, message string) error {
	fmt.Println()
	sp := ui.RunWaitingSpinner(message)
	if err := s.WaitConnected(ctx); err != nil {
		sp.Stop()
		return transfer.NewError("connect to peer", err)
	}
	sp.Success("Connected to peer")
	return nil
}

// waitForPeerExit holds the connection open until the receiver leaves, so the
// tail of the channel buffer is delivered before teardown.
func waitForPeerExit(events <-chan event.Event, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case e, ok := <-events:
			if !ok || e.Type == event.Disconnected {
				return
			}
		case <-timer.C:
			return
		}
	}
}

func summarize(status, name string, size int64, elapsed time.Duration, savedTo string) ui.TransferSummary {
	speed := "-"
	if elapsed > 0 {
		speed = utils.FormatSpeed(float64(size) / elapsed.Seconds())
	}
	return ui.TransferSummary{
		Status:   status,
		File:     name,
		Size:     size,
		Duration: utils.FormatTimeDuration(elapsed),
		Speed:    speed,
		SavedTo:  savedTo,
	}
}
