package health

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/toko-cart/internal/common"
)

const defaultProbeTimeout = 500 * time.Millisecond

// Check probes one dependency for readiness.
type Check struct {
	Name    string
	Timeout time.Duration
	Ping    func(ctx context.Context) error
}

// Report is the per-dependency entry of a readiness response.
type Report struct {
	Status    string  `json:"status"`
	Error     string  `json:"error,omitempty"`
	LatencyMS float64 `json:"latency_ms"`
}

// Status is the readiness response body.
type Status struct {
	Status string            `json:"status"`
	Checks map[string]Report `json:"checks,omitempty"`
}

var draining atomic.Bool

// SetReady toggles readiness. Shutdown flips it off so load balancers drain the instance.
func SetReady(ready bool) {
	draining.Store(!ready)
}

// Handler serves liveness and readiness probes.
type Handler struct {
	Checks []Check
}

// Live answers 200 while the process can serve HTTP at all.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready probes every dependency in parallel and answers 503 when any is down
// or the instance is draining.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, Status{Status: "draining"})
		return
	}

	var (
		mu      sync.Mutex
		g       errgroup.Group
		reports = make(map[string]Report, len(h.Checks))
	)
	for _, c := range h.Checks {
		if c.Ping == nil {
			continue
		}
		c := c
		g.Go(func() error {
			start := time.Now()
			err := probe(r.Context(), c)
			rep := Report{Status: "ok", LatencyMS: float64(time.Since(start).Microseconds()) / 1000}
			if err != nil {
				rep.Status = "down"
				rep.Error = err.Error()
			}
			mu.Lock()
			reports[c.Name] = rep
			mu.Unlock()
			return err
		})
	}

	body, code := Status{Status: "ready", Checks: reports}, http.StatusOK
	if err := g.Wait(); err != nil {
		body.Status, code = "degraded", http.StatusServiceUnavailable
	}
	common.JSON(w, code, body)
}

func probe(ctx context.Context, c Check) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Ping(ctx)
}
