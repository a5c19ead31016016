// Package metrics exposes process counters over a loopback-only HTTP mux,
// in the style of the teacher's own pkg/ipc/metrics.go: package-level
// promauto collectors updated from the call sites that own the data, and a
// thin chi.Router mounting promhttp.Handler() alongside a health probe.
package metrics

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mandate-run/mandate/internal/policy"
	"github.com/mandate-run/mandate/internal/todo"
)

var (
	OperationsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mandate",
		Name:      "operations_executed_total",
		Help:      "Operations applied by the coordinator, by tool and outcome.",
	}, []string{"tool", "outcome"})

	PolicyDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mandate",
		Name:      "policy_denials_total",
		Help:      "Operations refused by the policy engine, by tool.",
	}, []string{"tool"})

	ProviderCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mandate",
		Name:      "provider_calls_total",
		Help:      "Model provider calls, by provider and outcome.",
	}, []string{"provider", "outcome"})

	TodoQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mandate",
		Name:      "todo_queue_depth",
		Help:      "Pending todo items awaiting execution.",
	})
)

// RefreshTodoQueueDepth sets TodoQueueDepth from the live execution queue.
// Grounded on the teacher's refreshTicketGauge/refreshAuthSessionGauge
// pattern of pulling a gauge value from the owning store on demand.
func RefreshTodoQueueDepth(store *todo.Store) {
	if store == nil {
		return
	}
	TodoQueueDepth.Set(float64(len(store.ExecutionQueue())))
}

// RecordDenial increments PolicyDenials for tool and logs nothing itself;
// callers own policy.Engine.Allowed/CommandAllowed and call this on refusal.
func RecordDenial(tool string) {
	PolicyDenials.WithLabelValues(tool).Inc()
}

// RecordOperation increments OperationsExecuted for tool with outcome
// "applied" or "failed".
func RecordOperation(tool string, err error) {
	outcome := "applied"
	if err != nil {
		outcome = "failed"
	}
	OperationsExecuted.WithLabelValues(tool, outcome).Inc()
}

// RecordProviderCall increments ProviderCalls for provider with outcome
// "ok" or "error".
func RecordProviderCall(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ProviderCalls.WithLabelValues(provider, outcome).Inc()
}

// Server serves /metrics, /healthz and /policy on a loopback-only listener,
// gated behind config.yaml's metrics_addr (empty disables it entirely).
type Server struct {
	addr       string
	httpServer *http.Server
}

// New builds a Server for addr (e.g. "127.0.0.1:9090") without checking or
// binding it; Serve refuses a non-loopback address: metrics are an
// operator-local concern, never exposed to the network by default.
func New(addr string, policyEngine *policy.Engine) (*Server, error) {
	router := chi.NewRouter()
	router.Get("/metrics", promhttp.Handler().ServeHTTP)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/policy", policyIntrospectionHandler(policyEngine))

	return &Server{
		addr: addr,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// policySnapshot is the JSON body served by /policy: the same
// allowed/blocked command lists the Model Client folds into its system
// instruction, exposed for operator diagnostics.
type policySnapshot struct {
	AllowedCommands []string `json:"allowed_commands"`
	BlockedCommands []string `json:"blocked_commands"`
}

// policyIntrospectionHandler serves the live policy document's command
// lists as JSON, so an operator can confirm what's loaded without shelling
// into the process (mirrors cmd/mandate's /debug slash command over HTTP).
func policyIntrospectionHandler(policyEngine *policy.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if policyEngine == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(policySnapshot{
			AllowedCommands: policyEngine.AllowedCommands(),
			BlockedCommands: policyEngine.BlockedCommands(),
		})
	}
}

// mustBeLoopback rejects addresses that don't resolve to a loopback host,
// so a misconfigured metrics_addr can't accidentally expose internals.
func mustBeLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host == "" || host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip != nil && ip.IsLoopback() {
		return nil
	}
	return &net.AddrError{Err: "metrics address must be loopback", Addr: addr}
}

// Serve starts the listener and blocks until the context is cancelled or
// the server fails. Returns nil on a clean shutdown.
func (s *Server) Serve(ctx context.Context) error {
	if err := mustBeLoopback(s.addr); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
