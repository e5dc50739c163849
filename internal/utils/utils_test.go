package utils

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "0 B", FormatSize(0))
	assert.Equal(t, "1023 B", FormatSize(1023))
	assert.Equal(t, "48.83 KB", FormatSize(50000))
	assert.Equal(t, "1.50 MB", FormatSize(1536*1024))
	assert.Equal(t, "2.00 GB", FormatSize(2<<30))
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "512 B/s", FormatSpeed(512))
	assert.Equal(t, "16.00 KB/s", FormatSpeed(16*1024))
	assert.Equal(t, "3.00 MB/s", FormatSpeed(3*1024*1024))
}

func TestFormatTimeDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatTimeDuration(250*time.Millisecond))
	assert.Equal(t, "42s", FormatTimeDuration(42*time.Second))
	assert.Equal(t, "2m 5s", FormatTimeDuration(125*time.Second))
	assert.Equal(t, "1h 1m 1s", FormatTimeDuration(time.Hour+time.Minute+time.Second))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abcd…", TruncateString("abcdefgh", 5))
}

func TestGetUniqueFilename(t *testing.T) {
	dir := t.TempDir()

	first := GetUniqueFilename(dir, "report.pdf")
	assert.Equal(t, filepath.Join(dir, "report.pdf"), first)
	require.NoError(t, os.WriteFile(first, []byte("x"), 0o644))

	second := GetUniqueFilename(dir, "report.pdf")
	assert.Equal(t, filepath.Join(dir, "report (1).pdf"), second)
	require.NoError(t, os.WriteFile(second, []byte("x"), 0o644))

	assert.Equal(t, filepath.Join(dir, "report (2).pdf"), GetUniqueFilename(dir, "report.pdf"))
}

func TestGetUniqueFilenameStaysInDir(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, filepath.Join(dir, "passwd"), GetUniqueFilename(dir, "../../etc/passwd"))
	assert.Equal(t, filepath.Join(dir, "received"), GetUniqueFilename(dir, ""))
}

func TestNetworkHeuristics(t *testing.T) {
	assert.True(t, IsTunnelInterface("wg0"))
	assert.True(t, IsTunnelInterface("CloudflareWARP"))
	assert.False(t, IsTunnelInterface("eth0"))

	assert.True(t, IsCGNAT(net.ParseIP("100.100.1.2")))
	assert.False(t, IsCGNAT(net.ParseIP("192.168.1.2")))
	assert.False(t, IsCGNAT(nil))
}

func TestSafeFilename(t *testing.T) {
	cases := map[string]string{
		"report.pdf":       "report.pdf",
		"../x":             "x",
		"../../etc/passwd": "passwd",
		"a/b/c.txt":        "c.txt",
		"":                 "received",
		"..":               "received",
		"/":                "received",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeFilename(in), "input %q", in)
	}
}
