// Package console is an interactive operator REPL, offered as an
// alternative to the headless `run` mode for ad hoc inspection of a
// live fleet. It plays the role the teacher's node console plays for a
// blockchain client, but drives this system's stats surface instead of
// an embedded JS VM (scripting was never part of this system's scope).
package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"

	"github.com/kardelitaitu/testnet-spammer/internal/xlog"
)

var logger = xlog.NewModuleLogger(xlog.ModuleConsole)

// StatsSnapshot is what the console's "stats" command prints.
type StatsSnapshot struct {
	HealthyProxies int
	LockedLeases   int
	QueueDepth     int
	Dropped        uint64
}

// Provider is the live system the console reads from.
type Provider interface {
	Snapshot() StatsSnapshot
}

const prompt = "spammer> "

// Run drives the REPL against stdin/stdout until "quit"/"exit" or EOF.
// Recognized commands: stats, help, quit.
func Run(p Provider, out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if quit := dispatch(input, p, out); quit {
			return nil
		}
	}
}

func dispatch(input string, p Provider, out io.Writer) (quit bool) {
	switch input {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(out, "commands: stats, help, quit")
	case "stats":
		printStats(p, out)
	default:
		fmt.Fprintf(out, "unknown command %q (try \"help\")\n", input)
	}
	return false
}

func printStats(p Provider, out io.Writer) {
	if p == nil {
		fmt.Fprintln(out, "no live system attached")
		return
	}
	s := p.Snapshot()
	fmt.Fprintf(out, "healthy_proxies=%d locked_leases=%d queue_depth=%d dropped=%d\n",
		s.HealthyProxies, s.LockedLeases, s.QueueDepth, s.Dropped)
}
