package banlist

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rjeczalik/notify"
)

// ProxyEndpoint is one entry from the proxy list file (spec.md §6).
type ProxyEndpoint struct {
	Index    int
	Scheme   string // "http", "https", or "socks5"
	Host     string
	Port     string
	User     string
	Pass     string
}

// Addr returns the scheme://host:port form used to configure transports.
func (p ProxyEndpoint) Addr() string {
	return p.Scheme + "://" + p.Host + ":" + p.Port
}

// ParseProxyList parses the line-oriented format from spec.md §6:
// "host:port" or "host:port:user:pass", '#'-prefixed and blank lines
// ignored. Scheme defaults to "http"; a "socks5://" or "https://" prefix
// on the host field overrides it.
func ParseProxyList(path string) ([]ProxyEndpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Empty proxy list is a valid boundary case (spec.md §8):
			// all wallets operate without a proxy.
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening proxy list %s", path)
	}
	defer f.Close()
	return parseProxyListReader(f)
}

func parseProxyListReader(f *os.File) ([]ProxyEndpoint, error) {
	var out []ProxyEndpoint
	idx := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ep, err := parseProxyLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "proxy list line %q", line)
		}
		ep.Index = idx
		idx++
		out = append(out, ep)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseProxyLine(line string) (ProxyEndpoint, error) {
	scheme := "http"
	if i := strings.Index(line, "://"); i >= 0 {
		scheme = line[:i]
		line = line[i+3:]
	}
	parts := strings.Split(line, ":")
	switch len(parts) {
	case 2:
		return ProxyEndpoint{Scheme: scheme, Host: parts[0], Port: parts[1]}, nil
	case 4:
		return ProxyEndpoint{Scheme: scheme, Host: parts[0], Port: parts[1], User: parts[2], Pass: parts[3]}, nil
	default:
		return ProxyEndpoint{}, errors.Errorf("expected host:port or host:port:user:pass, got %d fields", len(parts))
	}
}

// Port as int, used by some transport constructors that want a numeric
// port rather than a string.
func (p ProxyEndpoint) PortInt() int {
	n, _ := strconv.Atoi(p.Port)
	return n
}

// Watcher hot-reloads a proxy list file on change, invoking onChange with
// the freshly parsed entries: the full list as the file now stands, with
// indices assigned by line position. It keeps no state between reloads,
// so a removed or reordered line shifts the indices of the lines after it.
type Watcher struct {
	path      string
	onChange  func([]ProxyEndpoint)
	events    chan notify.EventInfo
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewWatcher starts watching path for writes and calls onChange with the
// full re-parsed list on every change. Call Stop to release the notify
// subscription.
func NewWatcher(path string, onChange func([]ProxyEndpoint)) (*Watcher, error) {
	events := make(chan notify.EventInfo, 4)
	if err := notify.Watch(path, events, notify.Write, notify.Create); err != nil {
		return nil, errors.Wrapf(err, "watching proxy list %s", path)
	}
	w := &Watcher{path: path, onChange: onChange, events: events, stop: make(chan struct{})}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.events:
			entries, err := ParseProxyList(w.path)
			if err != nil {
				continue
			}
			w.onChange(entries)
		case <-w.stop:
			notify.Stop(w.events)
			return
		}
	}
}

// Stop ends the watch goroutine.
func (w *Watcher) Stop() {
	close(w.stop)
	w.wg.Wait()
}
