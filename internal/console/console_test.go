package console

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeProvider struct{ snap StatsSnapshot }

func (f fakeProvider) Snapshot() StatsSnapshot { return f.snap }

func TestDispatch_Quit(t *testing.T) {
	var buf bytes.Buffer
	assert.True(t, dispatch("quit", nil, &buf))
	assert.True(t, dispatch("exit", nil, &buf))
}

func TestDispatch_Help(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, dispatch("help", nil, &buf))
	assert.Contains(t, buf.String(), "commands:")
}

func TestDispatch_StatsWithProvider(t *testing.T) {
	var buf bytes.Buffer
	p := fakeProvider{snap: StatsSnapshot{HealthyProxies: 2, LockedLeases: 1, QueueDepth: 5, Dropped: 3}}
	assert.False(t, dispatch("stats", p, &buf))
	out := buf.String()
	assert.True(t, strings.Contains(out, "healthy_proxies=2"))
	assert.True(t, strings.Contains(out, "dropped=3"))
}

func TestDispatch_StatsWithoutProvider(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, dispatch("stats", nil, &buf))
	assert.Contains(t, buf.String(), "no live system attached")
}

func TestDispatch_UnknownCommand(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, dispatch("frobnicate", nil, &buf))
	assert.Contains(t, buf.String(), "unknown command")
}
