package xlog

import "testing"

func TestNewModuleLogger_ReturnsUsableLogger(t *testing.T) {
	logger := NewModuleLogger(ModuleScheduler)
	if logger == nil {
		t.Fatal("expected a non-nil sugared logger")
	}
	logger.Infow("test message", "k", "v")
}

func TestSetLevel_AcceptsKnownLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		SetLevel(lvl)
	}
}

func TestSetLevel_IgnoresUnknownLevel(t *testing.T) {
	SetLevel("info")
	SetLevel("not-a-real-level")
	// atomicLevel should remain on its last valid setting rather than panic.
	NewModuleLogger(ModuleCmd).Infow("still alive")
}
