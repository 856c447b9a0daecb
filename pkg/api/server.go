package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"

	"github.com/rzzdr/actuarial-risk-core/internal/pricing"
	"github.com/rzzdr/actuarial-risk-core/internal/risk"
	"github.com/rzzdr/actuarial-risk-core/internal/store"
	"github.com/rzzdr/actuarial-risk-core/internal/syndicate"
	"github.com/rzzdr/actuarial-risk-core/pkg/metrics"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/backpressure"
	"github.com/rzzdr/actuarial-risk-core/pkg/utils/logger"
)

// Config holds the configuration for the API server
type Config struct {
	Host                 string
	Port                 int
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	AllowedOrigins       []string
	MaxCopulaSimulations int
	MaxCopulaVariables   int
	MaxCopulaValues      int
	// SimulationRate is the sustained Monte Carlo requests per second; zero disables the limit
	SimulationRate       float64
	SimulationBurst      int
}

// Dependencies are the services the API exposes. Publishers are optional.
type Dependencies struct {
	Pricer     *pricing.Pricer
	Simulator  *risk.Simulator
	Syndicates *syndicate.Service
	Store      *store.SyndicateStore
	Quotes     Publisher
	Summaries  Publisher
	Recorder   *metrics.Recorder
}

// Server represents the API server
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	handlers   *Handlers
	limiter    *backpressure.TokenBucketLimiter
	log        *logger.Logger
}

// NewServer creates a new API server
func NewServer(config Config, deps Dependencies) *Server {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 60 * time.Second
	}
	if config.MaxCopulaSimulations <= 0 {
		config.MaxCopulaSimulations = 100000
	}
	if config.MaxCopulaVariables <= 0 {
		config.MaxCopulaVariables = 50
	}
	if config.MaxCopulaValues <= 0 {
		config.MaxCopulaValues = 2000000
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}

	router := gin.New()
	httpLog := logger.GetLogger("api.http").Zap()
	router.Use(ginzap.Ginzap(httpLog, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(httpLog, true))
	router.Use(CORSMiddleware(config.AllowedOrigins))
	if deps.Recorder != nil {
		router.Use(MetricsMiddleware(deps.Recorder))
	}

	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(deps, CopulaLimits{
			MaxSimulations: config.MaxCopulaSimulations,
			MaxVariables:   config.MaxCopulaVariables,
			MaxValues:      config.MaxCopulaValues,
		}),
		log:      logger.GetLogger("api.server"),
	}
	if config.SimulationRate > 0 {
		server.limiter = backpressure.NewTokenBucketLimiter(config.SimulationRate, config.SimulationBurst)
	}
	server.setupRoutes(deps.Recorder)
	return server
}

// Handler returns the HTTP handler serving every route
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the API server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Infof("Starting API server on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the API server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		s.log.Info("Stopping API server")
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
