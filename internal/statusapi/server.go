// Package statusapi is the ambient operator-facing HTTP surface: not
// named in spec.md, but a natural addition for a long-running fleet
// driver, mirroring the teacher's networks/rpc http-server idiom
// (httprouter-style mux, CORS middleware) and api/debug package
// (memsize reporting).
package statusapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/net/websocket"

	"github.com/kardelitaitu/testnet-spammer/internal/debugutil"
	"github.com/kardelitaitu/testnet-spammer/internal/metricsink"
	"github.com/kardelitaitu/testnet-spammer/internal/xlog"
)

func writeDeadline() time.Time { return time.Now().Add(2 * time.Second) }

var logger = xlog.NewModuleLogger(xlog.ModuleStatusAPI)

// StatsProvider is the minimal snapshot surface the /stats endpoint
// needs. Implemented by the process wiring in cmd/spammer, which has
// visibility into the banlist, pool, and sink together; this package
// stays decoupled from any single component's concrete type.
type StatsProvider interface {
	HealthyProxyCount() int
	LockedLeaseCount() int
	MetricsQueueDepth() int
	MetricsDropped() uint64
}

// MemsizeSubject is scanned on demand by /debug/memsize.
type MemsizeSubject func() interface{}

// Server wires the status/admin HTTP surface together.
type Server struct {
	stats   StatsProvider
	memsize MemsizeSubject

	mu        sync.Mutex
	wsClients map[*websocket.Conn]struct{}

	handler http.Handler
}

// New builds a Server. stats and memsize may be nil in which case their
// endpoints report zero values / an empty scan rather than panicking,
// so a caller can stand the surface up before the rest of the system is
// fully wired.
func New(stats StatsProvider, memsize MemsizeSubject) *Server {
	s := &Server{stats: stats, memsize: memsize, wsClients: make(map[*websocket.Conn]struct{})}

	router := httprouter.New()
	router.GET("/healthz", s.handleHealthz)
	router.GET("/stats", s.handleStats)
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())
	router.GET("/debug/memsize", s.handleMemsize)
	router.Handler(http.MethodGet, "/stream", websocket.Handler(s.handleStream))

	s.handler = cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(router)

	return s
}

// Handler returns the composed http.Handler, ready for http.Server.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statsResponse struct {
	HealthyProxies int    `json:"healthy_proxies"`
	LockedLeases   int    `json:"locked_leases"`
	QueueDepth     int    `json:"metrics_queue_depth"`
	Dropped        uint64 `json:"metrics_dropped"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	resp := statsResponse{}
	if s.stats != nil {
		resp.HealthyProxies = s.stats.HealthyProxyCount()
		resp.LockedLeases = s.stats.LockedLeaseCount()
		resp.QueueDepth = s.stats.MetricsQueueDepth()
		resp.Dropped = s.stats.MetricsDropped()
	}
	writeJSON(w, resp)
}

func (s *Server) handleMemsize(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.memsize == nil {
		writeJSON(w, debugutil.Report{})
		return
	}
	writeJSON(w, debugutil.Scan(s.memsize()))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnw("status api: response encode failed", "err", err)
	}
}

// handleStream registers a websocket client to receive metric rows as
// they're persisted (see Broadcast). Blocks until the client
// disconnects, per golang.org/x/net/websocket.Handler's contract.
func (s *Server) handleStream(conn *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// The connection is read-only from the client's perspective; block
	// on a read purely to detect disconnection.
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

// Broadcast fans row out to every connected /stream client. Intended to
// be called from the metrics sink's flush path (or a thin adapter
// around it); a slow or dead client is dropped rather than allowed to
// back-pressure the broadcaster.
func (s *Server) Broadcast(row metricsink.Row) {
	payload, err := json.Marshal(row)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.wsClients {
		conn.SetWriteDeadline(writeDeadline())
		if _, err := conn.Write(payload); err != nil {
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}
