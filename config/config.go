// Package config loads the spammer's startup configuration document (see
// spec.md §6) from TOML, the same format the teacher dumps/loads node
// config with in cmd/utils/nodecmd/dumpconfigcmd.go. Configuration is
// immutable once loaded.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/units"
	"github.com/naoina/toml"
	"github.com/pbnjay/memory"
	"github.com/pkg/errors"

	"github.com/kardelitaitu/testnet-spammer/internal/errclass"
)

// FallbackMode selects what the metrics sink does when its soft cap is
// exceeded (spec.md §4.3).
type FallbackMode string

const (
	FallbackDropOldest FallbackMode = "drop_oldest"
	FallbackDropNewest FallbackMode = "drop_newest"
	FallbackBlock      FallbackMode = "block"
)

// TaskWeight overrides a catalog entry's scheduling weight by name.
type TaskWeight struct {
	Name   string `toml:"name"`
	Weight int    `toml:"weight"`
}

// Config is the full startup document. Every field from spec.md §6's
// configuration table is represented, plus a handful of ambient fields
// (log level, status API bind address, row-store backend selection)
// that the distilled spec left implicit.
type Config struct {
	RPCURL       string `toml:"rpc_url"`
	ChainID      int64  `toml:"chain_id"`
	WalletSource string `toml:"wallet_source"`
	ProxyListFile string `toml:"proxy_list_file"`

	WorkerCount int `toml:"worker_count"`

	TaskIntervalMinMS int `toml:"task_interval_min_ms"`
	TaskIntervalMaxMS int `toml:"task_interval_max_ms"`
	TaskTimeoutS      int `toml:"task_timeout_s"`

	LeaseCooldownMS int `toml:"lease_cooldown_ms"`

	ProxyBanDurationMin int `toml:"proxy_ban_duration_min"`
	ProxyMaxFailures    int `toml:"proxy_max_failures"`

	MetricsBatchSize       int          `toml:"metrics_batch_size"`
	MetricsBatchIntervalMS int          `toml:"metrics_batch_interval_ms"`
	MetricsSoftCap         int          `toml:"metrics_soft_cap"`
	MetricsFallback        FallbackMode `toml:"metrics_fallback"`

	DBMaxConnections int    `toml:"db_max_connections"`
	DBBackend        string `toml:"db_backend"` // "mysql" or "badger" (default)
	DBDSN            string `toml:"db_dsn"`

	EnabledTasks  []string     `toml:"enabled_tasks"`
	DisabledTasks []string     `toml:"disabled_tasks"`
	TaskWeights   []TaskWeight `toml:"task_weights"`

	// Ambient fields.
	LogLevel        string `toml:"log_level"`
	StatusAPIListen string `toml:"status_api_listen"`

	// Optional domain-stack fan-out, all disabled unless set. The run
	// command wires the redis and leveldb banlist fields; the kafka and
	// s3 fields are parsed but not used by it.
	RedisBanlistSyncAddr string `toml:"redis_banlist_sync_addr"`
	LevelDBBanlistPath   string `toml:"leveldb_banlist_path"`
	KafkaBrokers         []string `toml:"kafka_brokers"`
	KafkaTopic           string   `toml:"kafka_topic"`
	S3ArchiveBucket      string   `toml:"s3_archive_bucket"`
}

// Defaults mirrors spec.md §6's documented defaults.
func Defaults() Config {
	return Config{
		WorkerCount:            4,
		TaskIntervalMinMS:      1000,
		TaskIntervalMaxMS:      5000,
		TaskTimeoutS:           180,
		LeaseCooldownMS:        4000,
		ProxyBanDurationMin:    30,
		ProxyMaxFailures:       3,
		MetricsBatchSize:       200,
		MetricsBatchIntervalMS: 2000,
		MetricsSoftCap:         10000,
		MetricsFallback:        FallbackDropOldest,
		DBMaxConnections:       5,
		DBBackend:              "badger",
		LogLevel:               "info",
		StatusAPIListen:        "127.0.0.1:8787",
	}
}

// Load reads and parses a TOML config document, layering it over
// Defaults() and auto-scaling host-dependent defaults (spec.md §9
// "Pattern translation" style ambient tuning) when the document leaves
// them unset.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	f, err := os.Open(path)
	if err != nil {
		return nil, errclass.Wrap(errclass.Configuration, errors.Wrapf(err, "opening config %s", path))
	}
	defer f.Close()

	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, errclass.Wrap(errclass.Configuration, errors.Wrapf(err, "parsing config %s", path))
	}

	autoscale(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, errclass.Wrap(errclass.Configuration, err)
	}
	return &cfg, nil
}

// autoscale adjusts memory-sensitive defaults to the host's available RAM
// when the config document didn't set them explicitly (field is still at
// its Defaults() value).
func autoscale(cfg *Config) {
	total := memory.TotalMemory()
	if total == 0 {
		return
	}
	gib := total / uint64(units.GiB)

	def := Defaults()
	if cfg.MetricsSoftCap == def.MetricsSoftCap && gib > 0 {
		scaled := int(gib) * 2000
		if scaled > cfg.MetricsSoftCap {
			cfg.MetricsSoftCap = scaled
		}
	}
	if cfg.DBMaxConnections == def.DBMaxConnections && gib >= 8 {
		cfg.DBMaxConnections = 10
	}
}

func validate(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("rpc_url is required")
	}
	if cfg.TaskIntervalMinMS > cfg.TaskIntervalMaxMS {
		return errors.New("task_interval_min_ms must be <= task_interval_max_ms")
	}
	switch cfg.MetricsFallback {
	case FallbackDropOldest, FallbackDropNewest, FallbackBlock:
	case "":
		cfg.MetricsFallback = FallbackDropOldest
	default:
		return errors.Errorf("unrecognized metrics_fallback %q", cfg.MetricsFallback)
	}
	return nil
}

func (c *Config) TaskInterval() (min, max time.Duration) {
	return time.Duration(c.TaskIntervalMinMS) * time.Millisecond,
		time.Duration(c.TaskIntervalMaxMS) * time.Millisecond
}

func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutS) * time.Second
}

func (c *Config) LeaseCooldown() time.Duration {
	return time.Duration(c.LeaseCooldownMS) * time.Millisecond
}

func (c *Config) ProxyBanDuration() time.Duration {
	return time.Duration(c.ProxyBanDurationMin) * time.Minute
}

func (c *Config) MetricsBatchInterval() time.Duration {
	return time.Duration(c.MetricsBatchIntervalMS) * time.Millisecond
}

// String implements fmt.Stringer for debug/log output.
func (c *Config) String() string {
	return fmt.Sprintf("Config{rpc_url=%s chain_id=%d workers=%d}", c.RPCURL, c.ChainID, c.WorkerCount)
}

// TOML renders the full config document, the form "dumpconfig" and
// "init" write to disk (as opposed to String's one-line debug summary).
func (c *Config) TOML() (string, error) {
	b, err := toml.Marshal(c)
	if err != nil {
		return "", errclass.Wrap(errclass.Configuration, err)
	}
	return string(b), nil
}
