// Command spammer drives the multi-wallet, multi-chain testnet
// transaction-generation fleet. Subcommands: run (default), dumpconfig,
// init, console. Structured the way the teacher's cmd/kcn/main.go
// assembles an urfave/cli app: a package-level app var, flag groups per
// command, and thin Action funcs that hand off to the real wiring.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/kardelitaitu/testnet-spammer/cmd/utils"
	"github.com/kardelitaitu/testnet-spammer/config"
	"github.com/kardelitaitu/testnet-spammer/internal/banlist"
	"github.com/kardelitaitu/testnet-spammer/internal/console"
	"github.com/kardelitaitu/testnet-spammer/internal/metricsink"
	"github.com/kardelitaitu/testnet-spammer/internal/nonce"
	"github.com/kardelitaitu/testnet-spammer/internal/rpcclient"
	"github.com/kardelitaitu/testnet-spammer/internal/scheduler"
	"github.com/kardelitaitu/testnet-spammer/internal/statusapi"
	"github.com/kardelitaitu/testnet-spammer/internal/task"
	"github.com/kardelitaitu/testnet-spammer/internal/tasks"
	"github.com/kardelitaitu/testnet-spammer/internal/wallet"
	"github.com/kardelitaitu/testnet-spammer/internal/walletpool"
	"github.com/kardelitaitu/testnet-spammer/internal/xlog"
)

var logger = xlog.NewModuleLogger(xlog.ModuleCmd)

func main() {
	app := cli.NewApp()
	app.Name = "spammer"
	app.Usage = "multi-wallet, multi-chain EVM testnet load generator"
	app.Version = "0.1.0"
	app.Flags = utils.RunFlags
	app.Action = runAction

	app.Commands = []cli.Command{
		{
			Name:   "run",
			Usage:  "start the fleet (default action)",
			Flags:  utils.RunFlags,
			Action: runAction,
		},
		{
			Name:   "dumpconfig",
			Usage:  "print the effective configuration as TOML",
			Flags:  utils.DumpConfigFlags,
			Action: dumpConfigAction,
		},
		{
			Name:   "init",
			Usage:  "scaffold a config/proxy-list/wallet-file template",
			Flags:  utils.InitFlags,
			Action: initAction,
		},
		{
			Name:   "console",
			Usage:  "interactive REPL (no fleet is attached; stats reports none)",
			Flags:  utils.ConsoleFlags,
			Action: consoleAction,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Errorw("fatal error", "err", err)
		os.Exit(1)
	}
}

func loadConfigFromCLI(c *cli.Context) (*config.Config, error) {
	path := c.String(utils.ConfigFileFlag.Name)
	return config.Load(path)
}

func dumpConfigAction(c *cli.Context) error {
	cfg, err := loadConfigFromCLI(c)
	if err != nil {
		defaults := config.Defaults()
		cfg = &defaults
	}
	doc, err := cfg.TOML()
	if err != nil {
		return err
	}
	fmt.Println(doc)
	return nil
}

func initAction(c *cli.Context) error {
	dir := c.String(utils.OutDirFlag.Name)
	if err := utils.Scaffold(dir); err != nil {
		return err
	}
	fmt.Printf("scaffolded a template fleet config under %s\n", dir)
	return nil
}

// system bundles every long-lived component main wires together, so the
// status API and console can read a consistent snapshot of it.
type system struct {
	banlist      *banlist.Banlist
	proxyIndices []int
	pool         *walletpool.Pool
	sink         *metricsink.Sink
}

func (s *system) HealthyProxyCount() int {
	return len(s.banlist.HealthyIndices(s.proxyIndices))
}
func (s *system) LockedLeaseCount() int  { return s.pool.LockedCount() }
func (s *system) MetricsQueueDepth() int { return s.sink.QueueDepth() }
func (s *system) MetricsDropped() uint64 { return s.sink.DroppedCount() }

func (s *system) Snapshot() console.StatsSnapshot {
	return console.StatsSnapshot{
		HealthyProxies: s.HealthyProxyCount(),
		LockedLeases:   s.pool.LockedCount(),
		QueueDepth:     s.sink.QueueDepth(),
		Dropped:        s.sink.DroppedCount(),
	}
}

func runAction(c *cli.Context) error {
	xlog.SetLevel(c.String(utils.LogLevelFlag.Name))

	cfg, err := loadConfigFromCLI(c)
	if err != nil {
		return err
	}
	logger.Infow("starting fleet", "config", cfg.String())

	walletSource := wallet.HexFileSource{Path: c.String(utils.WalletFileFlag.Name)}
	identities, err := walletSource.LoadWallets()
	if err != nil {
		return err
	}

	proxies, err := banlist.ParseProxyList(cfg.ProxyListFile)
	if err != nil {
		return err
	}

	bl := banlist.New(cfg.ProxyMaxFailures, cfg.ProxyBanDuration())
	if cfg.LevelDBBanlistPath != "" {
		persister, err := banlist.OpenLevelDBPersister(cfg.LevelDBBanlistPath)
		if err != nil {
			return err
		}
		defer persister.Close()
		if err := persister.LoadInto(bl); err != nil {
			return err
		}
		bl.AddPersister(persister)
	}
	if cfg.RedisBanlistSyncAddr != "" {
		sync, err := banlist.NewRedisSync(cfg.RedisBanlistSyncAddr, bl)
		if err != nil {
			return err
		}
		defer sync.Close()
		bl.AddPersister(sync)
	}

	factory := func(w wallet.Identity, proxy *banlist.ProxyEndpoint) (rpcclient.Client, error) {
		var opts []rpcclient.Option
		if proxy != nil && proxy.Scheme == "socks5" {
			opts = append(opts, rpcclient.WithSOCKS5Proxy(proxy.Host+":"+proxy.Port, nil))
		}
		return rpcclient.NewHTTPClient(cfg.RPCURL, opts...), nil
	}
	pool := walletpool.New(identities, proxies, bl, factory, cfg.LeaseCooldown())

	primaryClient := rpcclient.NewHTTPClient(cfg.RPCURL)
	defer primaryClient.Close()
	nonceCo := nonce.New(primaryClient, 500*time.Millisecond)

	store, err := openRowStore(cfg)
	if err != nil {
		return err
	}
	sink := metricsink.NewSink(store, metricsink.Config{
		BatchSize:     cfg.MetricsBatchSize,
		BatchInterval: cfg.MetricsBatchInterval(),
		SoftCap:       cfg.MetricsSoftCap,
		Fallback:      toSinkFallback(cfg.MetricsFallback),
	})
	defer sink.Close()

	catalog, err := buildCatalog(cfg)
	if err != nil {
		return err
	}

	minMS, maxMS := cfg.TaskInterval()
	sched := scheduler.New(scheduler.Config{
		WorkerCount:   cfg.WorkerCount,
		TaskTimeout:   cfg.TaskTimeout(),
		MinIntervalMS: int(minMS.Milliseconds()),
		MaxIntervalMS: int(maxMS.Milliseconds()),
	}, pool, nonceCo, sink, catalog)

	proxyIndices := make([]int, len(proxies))
	for i, p := range proxies {
		proxyIndices[i] = p.Index
	}
	sys := &system{banlist: bl, proxyIndices: proxyIndices, pool: pool, sink: sink}

	statusAddr := cfg.StatusAPIListen
	if v := c.String(utils.StatusAddrFlag.Name); v != "" {
		statusAddr = v
	}
	var httpSrv *http.Server
	if statusAddr != "" {
		api := statusapi.New(sys, func() interface{} { return sys })
		httpSrv = &http.Server{Addr: statusAddr, Handler: api.Handler()}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorw("status api server error", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Infow("shutdown signal received")
		cancel()
	}()

	sched.Run(ctx)

	if httpSrv != nil {
		_ = httpSrv.Close()
	}
	logger.Infow("fleet stopped cleanly")
	return nil
}

func consoleAction(c *cli.Context) error {
	// A standalone console session has no locally-running fleet to
	// attach to in this process; it prints a notice rather than failing
	// the command, since operators typically run it against a
	// separately-running `run` process's status surface in a future
	// iteration of this command.
	fmt.Println("console: no local fleet attached in this process; run `spammer run` in another terminal")
	return console.Run(nil, os.Stdout)
}

func toSinkFallback(m config.FallbackMode) metricsink.FallbackMode {
	switch m {
	case config.FallbackDropNewest:
		return metricsink.DropNewest
	case config.FallbackBlock:
		return metricsink.Block
	default:
		return metricsink.DropOldest
	}
}

func openRowStore(cfg *config.Config) (metricsink.RowStore, error) {
	switch cfg.DBBackend {
	case "mysql":
		return metricsink.OpenSQLStore(cfg.DBDSN, cfg.DBMaxConnections)
	default:
		return metricsink.OpenBadgerStore("./spammer-data")
	}
}

func buildCatalog(cfg *config.Config) (*task.Catalog, error) {
	entries := filterAndWeighTasks(tasks.Default(), cfg)
	if len(entries) == 0 {
		return nil, fmt.Errorf("no tasks enabled; check enabled_tasks/disabled_tasks")
	}
	return task.NewCatalog(entries)
}

// filterAndWeighTasks applies cfg.EnabledTasks/DisabledTasks/TaskWeights
// (spec.md §6) on top of the built-in catalog. An empty EnabledTasks
// means "all tasks enabled" (disabled_tasks still subtracts from it).
func filterAndWeighTasks(all []task.Entry, cfg *config.Config) []task.Entry {
	enabled := make(map[string]bool, len(cfg.EnabledTasks))
	for _, name := range cfg.EnabledTasks {
		enabled[name] = true
	}
	disabled := make(map[string]bool, len(cfg.DisabledTasks))
	for _, name := range cfg.DisabledTasks {
		disabled[name] = true
	}
	weights := make(map[string]int, len(cfg.TaskWeights))
	for _, w := range cfg.TaskWeights {
		weights[w.Name] = w.Weight
	}

	var out []task.Entry
	for _, e := range all {
		name := e.Task.Name()
		if len(enabled) > 0 && !enabled[name] {
			continue
		}
		if disabled[name] {
			continue
		}
		if w, ok := weights[name]; ok && w > 0 {
			e.Weight = w
		}
		out = append(out, e)
	}
	return out
}
