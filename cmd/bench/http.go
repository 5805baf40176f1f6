package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/IvanBrykalov/swrcache/cache"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// healthResponse is the /healthz body.
type healthResponse struct {
	Status    string   `json:"status"`
	Issues    []string `json:"issues,omitempty"`
	Size      int      `json:"size"`
	Capacity  int      `json:"capacity"`
	HitRate   float64  `json:"hit_rate"`
	Evictions int64    `json:"evictions"`
	InFlight  int      `json:"in_flight"`
}

// healthHandler serves HealthCheck as JSON: 200 when healthy or degraded,
// 503 when unhealthy.
func healthHandler(hc interface{ HealthCheck() cache.Health }) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		h := hc.HealthCheck()
		body := healthResponse{
			Status:    h.Status.String(),
			Issues:    h.Issues,
			Size:      h.Stats.Size,
			Capacity:  h.Stats.Capacity,
			HitRate:   h.Stats.HitRate,
			Evictions: h.Stats.Evictions,
			InFlight:  h.Stats.InFlight,
		}
		w.Header().Set("Content-Type", "application/json")
		if h.Status == cache.StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(body)
	})
}

func newMux(c cache.Cache[string], reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/healthz", healthHandler(c))
	return mux
}

func newPprofMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// startServers binds the configured listeners and shuts them down when ctx ends.
func startServers(ctx context.Context, cmd *cobra.Command, c cache.Cache[string], reg *prometheus.Registry, log zerolog.Logger) error {
	addr, _ := cmd.Flags().GetString("http")
	pprofAddr, _ := cmd.Flags().GetString("pprof")

	if addr != "" {
		if err := serve(ctx, addr, newMux(c, reg), log.With().Str("server", "http").Logger()); err != nil {
			return err
		}
	}
	if pprofAddr != "" {
		if err := serve(ctx, pprofAddr, newPprofMux(), log.With().Str("server", "pprof").Logger()); err != nil {
			return err
		}
	}
	return nil
}

func serve(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("serving")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
		}
	}()
	context.AfterFunc(ctx, func() {
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	})
	return nil
}
