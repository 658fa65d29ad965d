// Package metrics exposes the server's Prometheus instrumentation:
// connection counts, request outcomes, DB pool occupancy, and idle
// timer evictions. Counters and gauges are registered once at package
// init through promauto, the same pattern
// shockwave/buffer_pool_prometheus.go uses for its buffer pool
// metrics, with a "webserver" namespace in place of "shockwave".
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AcceptedConnections counts every connection accept4 has handed
	// to the reactor, regardless of how it later ends.
	AcceptedConnections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "webserver",
		Subsystem: "reactor",
		Name:      "accepted_connections_total",
		Help:      "Total connections accepted by the reactor.",
	})

	// LiveConnections is the number of connections currently occupying
	// an arena slot (StateIdle, StateReading, or StateWriting).
	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "webserver",
		Subsystem: "reactor",
		Name:      "live_connections",
		Help:      "Connections currently held open by the reactor.",
	})

	// RequestsByOutcome counts each ProcessRead conclusion, labeled by
	// httpstate.Outcome.String().
	RequestsByOutcome = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "webserver",
		Subsystem: "httpstate",
		Name:      "requests_total",
		Help:      "Requests processed, labeled by outcome.",
	}, []string{"outcome"})

	// TimerEvictions counts connections closed by the idle-timeout
	// sweep rather than by EOF, hangup, or a write error.
	TimerEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "webserver",
		Subsystem: "reactor",
		Name:      "idle_evictions_total",
		Help:      "Connections closed for sitting idle past the timeout.",
	})

	// DBPoolInUse is the number of database handles currently checked
	// out of the pool, the live occupancy of its semaphore.
	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "webserver",
		Subsystem: "dbpool",
		Name:      "connections_in_use",
		Help:      "Database connections currently acquired from the pool.",
	})
)

// Handler serves the registered metrics in the standard Prometheus text
// exposition format, meant to be mounted on a separate metrics listener
// rather than the reactor's own socket, which speaks nothing but the
// CGI-routed HTTP/1.1 dialect described by httpstate.
func Handler() http.Handler {
	return promhttp.Handler()
}
