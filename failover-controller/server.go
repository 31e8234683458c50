package main

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	healthzCheck = promauto.NewCounter(prometheus.CounterOpts{
		Name: "healthz_requests_total",
		Help: "Total healthz (liveness) probe requests.",
	})
	readyzCheck = promauto.NewCounter(prometheus.CounterOpts{
		Name: "readyz_requests_total",
		Help: "Total readyz (readiness) probe requests.",
	})
)

// probeHandler serves /metrics, /healthz and /readyz. Readiness flips once
// the first failover check has completed.
type probeHandler struct {
	ready atomic.Bool
	mux   *http.ServeMux
}

func newProbeHandler() *probeHandler {
	p := &probeHandler{mux: http.NewServeMux()}
	p.mux.HandleFunc("/healthz", p.healthz)
	p.mux.HandleFunc("/readyz", p.readyz)
	p.mux.Handle("/metrics", promhttp.Handler())
	return p
}

func (p *probeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mux.ServeHTTP(w, r)
}

func (p *probeHandler) MarkReady() {
	p.ready.Store(true)
}

func (p *probeHandler) healthz(w http.ResponseWriter, r *http.Request) {
	healthzCheck.Inc()
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (p *probeHandler) readyz(w http.ResponseWriter, r *http.Request) {
	readyzCheck.Inc()
	if !p.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
