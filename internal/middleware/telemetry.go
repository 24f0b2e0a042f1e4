package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const latencySamples = 200

// latencyRing keeps the last latencySamples durations of one route.
type latencyRing struct {
	values [latencySamples]int64
	next   int
	full   bool
}

func (r *latencyRing) add(ms int64) {
	r.values[r.next] = ms
	r.next = (r.next + 1) % latencySamples
	if r.next == 0 {
		r.full = true
	}
}

func (r *latencyRing) sorted() []int64 {
	n := r.next
	if r.full {
		n = latencySamples
	}
	out := make([]int64, n)
	copy(out, r.values[:n])
	slices.Sort(out)
	return out
}

type routeLatencies struct {
	mu     sync.Mutex
	routes map[string]*latencyRing
}

func (l *routeLatencies) observe(route string, ms int64) (p50, p95 int64) {
	l.mu.Lock()
	ring, ok := l.routes[route]
	if !ok {
		ring = &latencyRing{}
		l.routes[route] = ring
	}
	ring.add(ms)
	values := ring.sorted()
	l.mu.Unlock()
	return percentile(values, 0.5), percentile(values, 0.95)
}

// percentile uses the nearest-rank method on sorted values.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted))+0.999999) - 1
	rank = max(0, min(rank, len(sorted)-1))
	return sorted[rank]
}

type telemetryRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *telemetryRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *telemetryRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(data)
	r.bytes += n
	return n, err
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *telemetryRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// Telemetry logs one line per request with rolling p50/p95 latency per route
// pattern. Health probes are logged at debug level.
func Telemetry(logger *zap.Logger) func(http.Handler) http.Handler {
	latencies := &routeLatencies{routes: make(map[string]*latencyRing)}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &telemetryRecorder{ResponseWriter: w}

			next.ServeHTTP(recorder, r)

			if logger == nil {
				return
			}
			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start).Milliseconds()

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			p50, p95 := latencies.observe(r.Method+" "+route, elapsed)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.String("requestId", readRequestIDHeader(r)),
				zap.Int("status", status),
				zap.Int("bytes", recorder.bytes),
				zap.Int64("duration_ms", elapsed),
				zap.Int64("p50_ms", p50),
				zap.Int64("p95_ms", p95),
			}
			switch {
			case r.URL.Path == "/health":
				logger.Debug("http_request", fields...)
			case status >= 500:
				logger.Error("http_request", fields...)
			case status >= 400:
				logger.Warn("http_request", fields...)
			default:
				logger.Info("http_request", fields...)
			}
		})
	}
}
