package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Default configuration values
const (
	DefaultServerURL   = "ws://localhost:3001/ws"
	DefaultPort        = "3001"
	DefaultMaxFileSize = int64(2) << 30 // 2 GiB
)

// DefaultSTUNServers are the public STUN servers used when none is configured.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

var (
	ErrInvalidServerURL   = errors.New("invalid signaling server URL")
	ErrRelayWithoutTURN   = errors.New("cannot force relay mode without TURN server configured")
	ErrInvalidMaxFileSize = errors.New("invalid max file size")
)

// Config holds application configuration
type Config struct {
	// ServerURL is the signaling WebSocket endpoint (ws:// or wss://, ending in /ws).
	ServerURL string

	// ListenAddr is where `serve` binds the broker.
	ListenAddr string

	// ICE servers for WebRTC
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool

	// OutputDir is where received files are written.
	OutputDir string

	// MaxFileSize bounds the size a receiver accepts from file-info.
	MaxFileSize int64
}

// Options for loading config with CLI flag overrides
type Options struct {
	ServerURL   string
	ListenAddr  string
	STUNServer  string
	TURNServer  string
	TURNUser    string
	TURNPass    string
	ForceRelay  bool
	OutputDir   string
	MaxFileSize int64
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	rawServer := firstNonEmpty(opts.ServerURL, os.Getenv("PEERDROP_SERVER"), DefaultServerURL)
	serverURL, err := NormalizeServerURL(rawServer)
	if err != nil {
		return nil, err
	}

	listen := firstNonEmpty(opts.ListenAddr, os.Getenv("PEERDROP_LISTEN"))
	if listen == "" {
		listen = ":" + firstNonEmpty(os.Getenv("PORT"), DefaultPort)
	}

	stun := DefaultSTUNServers
	if s := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER")); s != "" {
		stun = splitList(s)
	}

	maxSize := opts.MaxFileSize
	if maxSize == 0 {
		if env := os.Getenv("PEERDROP_MAX_FILE_SIZE"); env != "" {
			maxSize, err = strconv.ParseInt(env, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidMaxFileSize, env)
			}
		}
	}
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}
	if maxSize < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxFileSize, maxSize)
	}

	cfg := &Config{
		ServerURL:   serverURL,
		ListenAddr:  listen,
		STUNServers: stun,
		TURNServer:  firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:    firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME")),
		TURNPass:    firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
		ForceRelay:  opts.ForceRelay,
		OutputDir:   firstNonEmpty(opts.OutputDir, os.Getenv("PEERDROP_OUTPUT_DIR"), "."),
		MaxFileSize: maxSize,
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, ErrRelayWithoutTURN
	}

	return cfg, nil
}

// NormalizeServerURL turns "host:port", http(s) and ws(s) addresses into a
// WebSocket URL whose path ends in /ws.
func NormalizeServerURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidServerURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "ws://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidServerURL, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidServerURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidServerURL)
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	if !strings.HasSuffix(u.Path, "/ws") {
		u.Path += "/ws"
	}

	return u.String(), nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return c.STUNServers
}

// GetTURNServers returns TURN server URLs if configured. A bare host expands
// to the usual udp, tcp and tls variants.
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}

	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turns:"), "turn:")
	if strings.Contains(host, ":") || strings.Contains(host, "?") {
		return []string{c.TURNServer}
	}

	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
