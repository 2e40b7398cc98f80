package banlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProxyList(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "proxies.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseProxyList_SkipsBlankAndCommentLines(t *testing.T) {
	path := writeProxyList(t, "# comment\n\n1.2.3.4:8080\n")
	entries, err := ParseProxyList(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "http", entries[0].Scheme)
	assert.Equal(t, "1.2.3.4", entries[0].Host)
	assert.Equal(t, "8080", entries[0].Port)
	assert.Equal(t, 0, entries[0].Index)
}

func TestParseProxyList_MissingFileIsEmptyNotError(t *testing.T) {
	entries, err := ParseProxyList(filepath.Join(t.TempDir(), "nope.txt"))
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestParseProxyList_AuthenticatedAndSchemePrefixedEntries(t *testing.T) {
	path := writeProxyList(t, "socks5://5.6.7.8:1080:alice:secret\n9.9.9.9:3128\n")
	entries, err := ParseProxyList(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "socks5", entries[0].Scheme)
	assert.Equal(t, "alice", entries[0].User)
	assert.Equal(t, "secret", entries[0].Pass)
	assert.Equal(t, 0, entries[0].Index)

	assert.Equal(t, "http", entries[1].Scheme)
	assert.Equal(t, 1, entries[1].Index)
}

func TestParseProxyList_RejectsMalformedLine(t *testing.T) {
	path := writeProxyList(t, "not-a-valid-entry\n")
	_, err := ParseProxyList(path)
	assert.Error(t, err)
}

func TestProxyEndpoint_AddrAndPortInt(t *testing.T) {
	p := ProxyEndpoint{Scheme: "http", Host: "10.0.0.1", Port: "3128"}
	assert.Equal(t, "http://10.0.0.1:3128", p.Addr())
	assert.Equal(t, 3128, p.PortInt())
}
