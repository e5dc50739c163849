package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/brutella/dnssd"
	"github.com/rs/zerolog/log"

	"github.com/jhon1466/PeerDrop/internal/version"
)

const (
	// ServiceType is the DNS-SD type a PeerDrop broker announces.
	ServiceType = "_peerdrop._tcp"
	Domain      = "local"
)

var ErrNotFound = errors.New("no PeerDrop broker found on the local network")

// Broker is a signaling server found on the LAN.
type Broker struct {
	Name string
	Host string
	Port int
}

// URL returns the broker's WebSocket endpoint.
func (b Broker) URL() string {
	return fmt.Sprintf("ws://%s/ws", net.JoinHostPort(b.Host, strconv.Itoa(b.Port)))
}

// Announce advertises a broker listening on port until ctx is cancelled.
func Announce(ctx context.Context, name string, port int) error {
	cfg := dnssd.Config{
		Name:   name,
		Type:   ServiceType,
		Domain: Domain,
		// mdns multicasts on every interface, so IPs can stay nil
		Text: map[string]string{"version": version.Version, "path": "/ws"},
		Port: port,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}

	if _, err := rp.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	log.Info().Str("name", name).Int("port", port).Msg("announcing broker via mDNS")

	if err := rp.Respond(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to respond to mDNS queries: %w", err)
	}
	return nil
}

// Find browses the LAN and returns the first broker that answers before ctx
// expires.
func Find(ctx context.Context) (Broker, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan Broker, 1)
	addFn := func(e dnssd.BrowseEntry) {
		b, ok := brokerFromEntry(e)
		if !ok {
			return
		}
		select {
		case found <- b:
			cancel()
		default:
		}
	}
	rmvFn := func(dnssd.BrowseEntry) {}

	errCh := make(chan error, 1)
	go func() {
		errCh <- dnssd.LookupType(ctx, serviceName(), addFn, rmvFn)
	}()

	select {
	case b := <-found:
		return b, nil
	case err := <-errCh:
		select {
		case b := <-found:
			return b, nil
		default:
		}
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return Broker{}, fmt.Errorf("mDNS lookup failed: %w", err)
		}
		return Broker{}, ErrNotFound
	}
}

func serviceName() string {
	return fmt.Sprintf("%s.%s.", ServiceType, Domain)
}

// brokerFromEntry picks a usable address from a browse entry, preferring IPv4.
func brokerFromEntry(e dnssd.BrowseEntry) (Broker, bool) {
	if len(e.IPs) == 0 || e.Port == 0 {
		return Broker{}, false
	}

	ip := e.IPs[0]
	for _, candidate := range e.IPs {
		if candidate.To4() != nil {
			ip = candidate
			break
		}
	}

	return Broker{Name: e.Name, Host: ip.String(), Port: e.Port}, true
}
