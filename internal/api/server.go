// Package api exposes pricing and deal operations over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	dealApp "github.com/fd1az/fxdesk/business/deal/app"
	dealDomain "github.com/fd1az/fxdesk/business/deal/domain"
	pricingDomain "github.com/fd1az/fxdesk/business/pricing/domain"
	"github.com/fd1az/fxdesk/internal/apm"
	"github.com/fd1az/fxdesk/internal/logger"
)

const tracerName = "github.com/fd1az/fxdesk/internal/api"

// Pricer calculates payout rates.
type Pricer interface {
	CalculateRate(ctx context.Context, symbol string, spot pricingDomain.SpotRate, partnerID string) (*pricingDomain.PricingResult, error)
	CalculateVolatilityAdjustedRate(ctx context.Context, symbol string, spot pricingDomain.SpotRate) (*pricingDomain.PricingResult, error)
	Quote(ctx context.Context, symbol, partnerID string) (*pricingDomain.PricingResult, error)
}

type VolatilityAnalyzer interface {
	AnalyzeVolatility(ctx context.Context, symbol string, timeWindowHours int) (*pricingDomain.VolatilityAnalysis, error)
}

type SpreadConfigs interface {
	GetActiveFixedSpreadConfig(ctx context.Context, symbol, partnerID string) (*pricingDomain.FixedSpreadConfig, error)
	SaveFixedSpreadConfig(ctx context.Context, cfg pricingDomain.FixedSpreadConfig) (*pricingDomain.FixedSpreadConfig, error)
	SaveVolatilityConfig(ctx context.Context, cfg pricingDomain.VolatilitySpreadConfig) (*pricingDomain.VolatilitySpreadConfig, error)
}

// Deals runs the deal lifecycle.
type Deals interface {
	CreateDeal(ctx context.Context, req dealApp.CreateDealRequest) (*dealDomain.Deal, error)
	GetDeal(ctx context.Context, dealID string) (*dealDomain.Deal, error)
	ListDeals(ctx context.Context, filter dealDomain.ListFilter) ([]dealDomain.Deal, error)
	GetDealStats(ctx context.Context, filter dealApp.StatsFilter) (*dealDomain.DealStats, error)
	ApproveDeal(ctx context.Context, dealID string) (*dealDomain.Deal, error)
	ExecuteDeal(ctx context.Context, dealID string) (*dealDomain.ExecutionResult, error)
	CancelDeal(ctx context.Context, dealID, reason string) (bool, error)
}

// Dependencies are the services behind the routes. DealStream and Metrics
// are optional.
type Dependencies struct {
	Pricer     Pricer
	Volatility VolatilityAnalyzer
	Configs    SpreadConfigs
	Deals      Deals
	DealStream http.Handler
	Metrics    http.Handler
}

type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// Server is the REST listener.
type Server struct {
	config Config
	deps   Dependencies
	logger logger.LoggerInterface
	tracer apm.Tracer
	server *http.Server
}

func NewServer(deps Dependencies, cfg Config, log logger.LoggerInterface) *Server {
	return &Server{
		config: cfg,
		deps:   deps,
		logger: log,
		tracer: apm.NewTracer(tracerName),
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(s.notFound)
	router.MethodNotAllowedHandler = http.HandlerFunc(s.methodNotAllowed)

	router.Use(s.recovery)
	router.Use(s.requestID)
	router.Use(s.tracing)
	router.Use(s.logging)
	router.Use(cors(s.config.AllowedOrigins))

	v1 := router.PathPrefix("/api/v1").Subrouter()

	route(v1, "/rates/calculate", s.calculateRate, http.MethodPost)
	route(v1, "/rates/volatility-adjusted", s.volatilityAdjustedRate, http.MethodPost)
	route(v1, "/rates/quote", s.quote, http.MethodGet)
	route(v1, "/volatility", s.analyzeVolatility, http.MethodGet)

	route(v1, "/spread-configs", s.saveSpreadConfig, http.MethodPost)
	route(v1, "/spread-configs/active", s.activeSpreadConfig, http.MethodGet)
	route(v1, "/volatility-configs", s.saveVolatilityConfig, http.MethodPost)

	route(v1, "/deals", s.createDeal, http.MethodPost)
	route(v1, "/deals", s.listDeals, http.MethodGet)
	route(v1, "/deals/stats", s.dealStats, http.MethodGet)
	route(v1, "/deals/{id}", s.getDeal, http.MethodGet)
	route(v1, "/deals/{id}/approve", s.approveDeal, http.MethodPost)
	route(v1, "/deals/{id}/execute", s.executeDeal, http.MethodPost)
	route(v1, "/deals/{id}/cancel", s.cancelDeal, http.MethodPost)

	if s.deps.DealStream != nil {
		router.Handle("/ws/deals", longLived(s.deps.DealStream)).Methods(http.MethodGet)
	}
	if s.deps.Metrics != nil {
		router.Handle("/metrics", s.deps.Metrics).Methods(http.MethodGet)
	}

	return router
}

// Start listens until Shutdown. It returns when the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.Handler(),
		ReadTimeout:       s.config.ReadTimeout,
		ReadHeaderTimeout: s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		BaseContext:       func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.logger.Info(ctx, "http server listening", "port", s.config.Port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// route registers h for method and for CORS preflight, which the cors
// middleware answers.
func route(r *mux.Router, path string, h http.HandlerFunc, method string) {
	r.HandleFunc(path, h).Methods(method, http.MethodOptions)
}

// longLived lifts the server read and write deadlines for streaming handlers.
func longLived(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})
		next.ServeHTTP(w, r)
	})
}
