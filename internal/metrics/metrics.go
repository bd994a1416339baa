package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Session metrics
	SessionsClosed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentimed_sessions_closed_total",
			Help: "Total number of usage sessions committed to the ledger",
		},
	)

	UsageMinutesCommitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentimed_usage_minutes_committed_total",
			Help: "Total usage minutes committed to the ledger",
		},
	)

	TrackingActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screentimed_tracking_active",
			Help: "Whether an open usage session exists (1) or not (0)",
		},
	)

	// Persistence metrics
	LedgerFlushFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "screentimed_ledger_flush_failures_total",
			Help: "Total ledger flushes that failed and will be retried by a later write",
		},
	)

	LedgerRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "screentimed_ledger_records",
			Help: "Number of date keys currently in the ledger",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SessionsClosed,
		UsageMinutesCommitted,
		TrackingActive,
		LedgerFlushFailures,
		LedgerRecords,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
