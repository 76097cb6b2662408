package cvmetrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/gordian-engine/gadapter/cv/cvstore"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHandler returns an http.Handler serving the metrics in g at /metrics.
func NewHandler(g prometheus.Gatherer) http.Handler {
	r := mux.NewRouter()
	setMetricsRoutes(r, g)
	return r
}

func setMetricsRoutes(r *mux.Router, g prometheus.Gatherer) {
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{})).Methods("GET")
}

// HTTPServer serves metrics and a small read-only view of the store.
type HTTPServer struct {
	done chan struct{}
}

type HTTPServerConfig struct {
	Listener net.Listener

	Gatherer prometheus.Gatherer

	// Optional; when set, the server also reports the highest decided height.
	Store cvstore.ValueStore
}

// NewHTTPServer starts serving on cfg.Listener in the background.
// The server stops when ctx is canceled.
func NewHTTPServer(ctx context.Context, log *slog.Logger, cfg HTTPServerConfig) *HTTPServer {
	srv := &http.Server{
		Handler: newMux(log, cfg),

		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	h := &HTTPServer{
		done: make(chan struct{}),
	}
	go h.serve(log, cfg.Listener, srv)
	go h.waitForShutdown(ctx, srv)

	return h
}

// Wait blocks until the server has stopped.
func (h *HTTPServer) Wait() {
	<-h.done
}

func (h *HTTPServer) waitForShutdown(ctx context.Context, srv *http.Server) {
	select {
	case <-h.done:
		return
	case <-ctx.Done():
		_ = srv.Close()
	}
}

func (h *HTTPServer) serve(log *slog.Logger, ln net.Listener, srv *http.Server) {
	defer close(h.done)

	if err := srv.Serve(ln); err != nil {
		if errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed) {
			log.Info("HTTP server shutting down")
		} else {
			log.Info("HTTP server shutting down due to error", "err", err)
		}
	}
}

func newMux(log *slog.Logger, cfg HTTPServerConfig) http.Handler {
	r := mux.NewRouter()

	setMetricsRoutes(r, cfg.Gatherer)

	if cfg.Store != nil {
		r.HandleFunc("/decided/max-height", handleMaxHeight(log, cfg.Store)).Methods("GET")
	}

	return r
}

func handleMaxHeight(log *slog.Logger, vs cvstore.ValueStore) func(w http.ResponseWriter, req *http.Request) {
	return func(w http.ResponseWriter, req *http.Request) {
		h, ok, err := vs.MaxDecidedValueHeight(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		var resp struct {
			Height  uint64
			Decided bool
		}
		resp.Height = uint64(h)
		resp.Decided = ok

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warn("Failed to marshal max height", "err", err)
			return
		}
	}
}
