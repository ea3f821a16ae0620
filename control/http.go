// control/http.go
// Author: momentics <momentics@gmail.com>
//
// HTTP endpoint exposing Prometheus metrics and debug probe state.

package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const shutdownGrace = 5 * time.Second

// HTTPServer serves /metrics and /debug/state.
type HTTPServer struct {
	srv *http.Server
	ln  net.Listener
	log zerolog.Logger
}

// NewHTTPServer binds addr immediately so that the bound address is known
// before Run. gatherer may be nil, in which case /metrics reports 503.
func NewHTTPServer(addr string, gatherer prometheus.Gatherer, probes *DebugProbes, log zerolog.Logger) (*HTTPServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintln(w, "metrics collection is disabled")
		})
	}
	mux.HandleFunc("/debug/state", func(w http.ResponseWriter, r *http.Request) {
		state := map[string]any{}
		if probes != nil {
			state = probes.DumpState()
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(state); err != nil {
			log.Warn().Err(err).Msg("encode debug state")
		}
	})

	return &HTTPServer{
		srv: &http.Server{
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ln:  ln,
		log: log.With().Str("component", "http").Logger(),
	}, nil
}

// Addr returns the bound address.
func (h *HTTPServer) Addr() net.Addr { return h.ln.Addr() }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (h *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		h.log.Info().Stringer("addr", h.ln.Addr()).Msg("metrics endpoint listening")
		errCh <- h.srv.Serve(h.ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := h.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
