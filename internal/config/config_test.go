package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PEERDROP_SERVER", "PEERDROP_LISTEN", "PORT", "STUN_SERVER",
		"TURN_SERVER", "TURN_USERNAME", "TURN_PASSWORD",
		"PEERDROP_MAX_FILE_SIZE", "PEERDROP_OUTPUT_DIR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, ":3001", cfg.ListenAddr)
	assert.Equal(t, DefaultSTUNServers, cfg.GetSTUNServers())
	assert.Nil(t, cfg.GetTURNServers())
	assert.Equal(t, DefaultMaxFileSize, cfg.MaxFileSize)
	assert.Equal(t, ".", cfg.OutputDir)
}

func TestLoadPriority(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEERDROP_SERVER", "https://signal.example.com")
	t.Setenv("PORT", "8080")
	t.Setenv("STUN_SERVER", "stun:a:1, stun:b:2")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, "wss://signal.example.com/ws", cfg.ServerURL)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, []string{"stun:a:1", "stun:b:2"}, cfg.STUNServers)

	cfg, err = Load(Options{ServerURL: "localhost:9000", ListenAddr: "127.0.0.1:7000"})
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:9000/ws", cfg.ServerURL)
	assert.Equal(t, "127.0.0.1:7000", cfg.ListenAddr)
}

func TestLoadForceRelayNeedsTURN(t *testing.T) {
	clearEnv(t)

	_, err := Load(Options{ForceRelay: true})
	assert.ErrorIs(t, err, ErrRelayWithoutTURN)

	cfg, err := Load(Options{ForceRelay: true, TURNServer: "turn.example.com", TURNUser: "u", TURNPass: "p"})
	require.NoError(t, err)
	assert.Len(t, cfg.GetTURNServers(), 3)
	user, pass := cfg.GetTURNCredentials()
	assert.Equal(t, "u", user)
	assert.Equal(t, "p", pass)
}

func TestLoadMaxFileSize(t *testing.T) {
	clearEnv(t)
	t.Setenv("PEERDROP_MAX_FILE_SIZE", "1024")

	cfg, err := Load(Options{})
	require.NoError(t, err)
	assert.Equal(t, int64(1024), cfg.MaxFileSize)

	t.Setenv("PEERDROP_MAX_FILE_SIZE", "lots")
	_, err = Load(Options{})
	assert.ErrorIs(t, err, ErrInvalidMaxFileSize)
}

func TestNormalizeServerURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "localhost:3001", want: "ws://localhost:3001/ws"},
		{in: "http://10.0.0.2:3001/", want: "ws://10.0.0.2:3001/ws"},
		{in: "https://drop.example.com/ws", want: "wss://drop.example.com/ws"},
		{in: "wss://drop.example.com/base", want: "wss://drop.example.com/base/ws"},
		{in: "ftp://drop.example.com", wantErr: true},
		{in: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeServerURL(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidServerURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetTURNServersExplicitURL(t *testing.T) {
	cfg := &Config{TURNServer: "turn:relay.example.com:3478?transport=udp"}
	assert.Equal(t, []string{"turn:relay.example.com:3478?transport=udp"}, cfg.GetTURNServers())
}
