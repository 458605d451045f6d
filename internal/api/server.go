package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"nse-signal-bot/internal/database"
	"nse-signal-bot/internal/market"
	"nse-signal-bot/internal/pipeline"
	candlesync "nse-signal-bot/internal/sync"
)

// Syncer runs candle sync batches. Satisfied by *sync.Scheduler.
type Syncer interface {
	Run(ctx context.Context, tasks []candlesync.Task, mode candlesync.Mode, progress candlesync.ProgressFunc) *candlesync.Summary
}

// Analyzer runs signal batches and single-symbol builds. Satisfied by
// *pipeline.Pipeline.
type Analyzer interface {
	Run(ctx context.Context, symbols []string, opts pipeline.Options) (*pipeline.BatchSummary, error)
	Analyze(ctx context.Context, symbol string, opts pipeline.Options) (*pipeline.Outcome, error)
}

// InstrumentLister supplies the tracked universe when a request names no
// symbols. Satisfied by *database.InstrumentRepository.
type InstrumentLister interface {
	ListActive(ctx context.Context) ([]database.Instrument, error)
}

// HealthChecker reports backing-store health. Satisfied by *database.DB.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           int
	Host           string
	ProductionMode bool
}

// Server is the HTTP surface over sync and the signal pipeline.
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	db          HealthChecker
	instruments InstrumentLister
	syncer      Syncer
	analyzer    Analyzer
	config      ServerConfig
	log         zerolog.Logger
}

// NewServer creates the API server and registers its routes.
func NewServer(config ServerConfig, db HealthChecker, instruments InstrumentLister, syncer Syncer, analyzer Analyzer, log zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		db:          db,
		instruments: instruments,
		syncer:      syncer,
		analyzer:    analyzer,
		config:      config,
		log:         log.With().Str("component", "api").Logger(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.router.Group("/api")
	{
		api.POST("/sync", s.handleSync)
		api.POST("/signals", s.handleSignals)
		api.GET("/analyze/:symbol", s.handleAnalyze)
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info().Str("addr", addr).Msg("starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "healthy",
	})
}

// symbols resolves the request's symbol list, falling back to the active
// instrument universe.
func (s *Server) symbols(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}

	instruments, err := s.instruments.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active instruments: %w", err)
	}

	out := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		out = append(out, inst.Symbol)
	}
	return out, nil
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

func parseTimeframes(names []string) ([]market.Timeframe, error) {
	if len(names) == 0 {
		names = []string{"1d"}
	}
	out := make([]market.Timeframe, 0, len(names))
	for _, name := range names {
		tf, err := market.ParseTimeframe(name)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	return out, nil
}
