// Package utils holds the CLI flag definitions shared by the spammer
// binary's subcommands, following the teacher's cmd/utils/flags.go
// convention of centralizing cli.Flag declarations away from main.go.
package utils

import "github.com/urfave/cli"

var (
	ConfigFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "Path to the spammer's TOML configuration file",
		Value: "spammer.toml",
	}
	LogLevelFlag = cli.StringFlag{
		Name:  "loglevel",
		Usage: "Log level: debug, info, warn, error",
		Value: "info",
	}
	StatusAddrFlag = cli.StringFlag{
		Name:  "statusaddr",
		Usage: "Bind address for the status/admin HTTP surface (empty falls back to status_api_listen from the config)",
		Value: "127.0.0.1:8090",
	}
	WalletFileFlag = cli.StringFlag{
		Name:  "wallets",
		Usage: "Path to the decrypted wallet JSON file",
		Value: "wallets.json",
	}
	OutDirFlag = cli.StringFlag{
		Name:  "outdir",
		Usage: "Directory to scaffold a new config/proxy-list/wallet template into",
		Value: "./spammer-init",
	}
)

// RunFlags is the flag set for the default "run" command.
var RunFlags = []cli.Flag{ConfigFileFlag, LogLevelFlag, StatusAddrFlag, WalletFileFlag}

// DumpConfigFlags is the flag set for "dumpconfig".
var DumpConfigFlags = []cli.Flag{ConfigFileFlag}

// InitFlags is the flag set for "init".
var InitFlags = []cli.Flag{OutDirFlag}

// ConsoleFlags is the flag set for "console".
var ConsoleFlags = []cli.Flag{ConfigFileFlag, StatusAddrFlag}
