// Package xlog provides the module-scoped loggers used throughout the
// spammer core. It follows the teacher's log.NewModuleLogger convention
// (one named logger per subsystem) but is backed by zap instead of log15.
package xlog

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	root     *zap.Logger
	rootOnce sync.Once
)

// Module names, mirroring the teacher's log.<ModuleName> constants.
const (
	ModuleBanlist   = "banlist"
	ModuleNonce     = "nonce"
	ModuleMetrics   = "metricsink"
	ModulePool      = "walletpool"
	ModuleScheduler = "scheduler"
	ModuleRPC       = "rpcclient"
	ModuleWallet    = "wallet"
	ModuleStatusAPI = "statusapi"
	ModuleConsole   = "console"
	ModuleConfig    = "config"
	ModuleCmd       = "cmd"
)

// SetLevel reconfigures the root logger's minimum level. Valid values are
// the usual "debug", "info", "warn", "error".
func SetLevel(level string) {
	initRoot()
	var lvl zapcore.Level
	if err := lvl.Set(level); err == nil {
		atomicLevel.SetLevel(lvl)
	}
}

var atomicLevel = zap.NewAtomicLevel()

func initRoot() {
	rootOnce.Do(func() {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stderr),
			atomicLevel,
		)
		root = zap.New(core)
	})
}

// NewModuleLogger returns a sugared logger tagged with module=name, the
// zap analogue of the teacher's log.NewModuleLogger(log.XXX).
func NewModuleLogger(name string) *zap.SugaredLogger {
	initRoot()
	return root.With(zap.String("module", name)).Sugar()
}
