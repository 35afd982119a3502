package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Cycle metrics
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attr_cycles_total",
			Help: "Total quota cycles run",
		},
		[]string{"result"},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attr_cycle_duration_seconds",
			Help:    "Quota cycle duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	PlayersOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "attr_players_online",
			Help: "Players present in the latest roster",
		},
	)

	LedgerSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "attr_ledger_players",
			Help: "Players tracked in the ledger",
		},
	)

	// Quota metrics
	PlaytimeSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attr_playtime_seconds_total",
			Help: "Total playtime seconds charged against quotas",
		},
		[]string{"player"},
	)

	BansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attr_bans_total",
			Help: "Ban commands issued",
		},
		[]string{"reason"},
	)

	PardonsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attr_pardons_total",
			Help: "Pardon commands issued",
		},
		[]string{"reason"},
	)

	AnnouncementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attr_announcements_total",
			Help: "Remaining-time announcements fired",
		},
		[]string{"label"},
	)

	GamblesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attr_gambles_total",
			Help: "Resolved gambles",
		},
		[]string{"outcome", "multiplier"},
	)

	// Command metrics
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attr_commands_total",
			Help: "Chat commands handled",
		},
		[]string{"command", "result"},
	)

	// Outbound metrics
	EffectsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attr_effects_dispatched_total",
			Help: "Effects rendered and sent to the game server",
		},
		[]string{"kind", "result"},
	)

	// Transport metrics
	TransportReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attr_transport_reconnects_total",
			Help: "Console websocket reconnects",
		},
		[]string{"reason"},
	)

	ServerOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "attr_server_online",
			Help: "1 when the game server reported online at the last health check",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		CyclesTotal,
		CycleDuration,
		PlayersOnline,
		LedgerSize,
		PlaytimeSeconds,
		BansTotal,
		PardonsTotal,
		AnnouncementsTotal,
		GamblesTotal,
		CommandsTotal,
		EffectsDispatched,
		TransportReconnects,
		ServerOnline,
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

// Handler exposes the mux, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.server.Handler
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
