// Package httpapi exposes the opportunity book, execution and risk state over
// a gin router.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/fd1az/arbitrage-engine/business/arbitrage/domain"
	"github.com/fd1az/arbitrage-engine/internal/logger"
)

// Opportunities reads the opportunity book.
type Opportunities interface {
	GetByID(ctx context.Context, id uint64) (*domain.Opportunity, error)
	List(ctx context.Context, minProfit decimal.Decimal, strategy domain.Strategy) ([]*domain.Opportunity, error)
}

// Executor runs opportunities and closes statistical positions.
type Executor interface {
	Execute(ctx context.Context, id uint64) (*domain.ExecutionResult, error)
	ClosePosition(ctx context.Context, id string) (domain.Position, error)
}

// Positions lists statistical positions.
type Positions interface {
	List(openOnly bool) []domain.Position
}

// StatsSource computes engine statistics.
type StatsSource interface {
	Compute(ctx context.Context) (domain.Stats, error)
}

// RiskSource reports the breaker state.
type RiskSource interface {
	State() domain.RiskState
}

// Deps are the collaborators behind the routes. All are required.
type Deps struct {
	Opportunities Opportunities
	Executor      Executor
	Positions     Positions
	Stats         StatsSource
	Risk          RiskSource
}

// Server serves the v1 API.
type Server struct {
	deps   Deps
	log    logger.LoggerInterface
	engine *gin.Engine
	srv    *http.Server
}

// New builds the router. serviceName labels the request spans.
func New(deps Deps, serviceName string, log logger.LoggerInterface) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{deps: deps, log: log, engine: gin.New()}
	s.engine.Use(gin.Recovery(), otelgin.Middleware(serviceName), s.requestLog())
	s.routes()
	return s
}

func (s *Server) routes() {
	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/opportunities", s.listOpportunities)
		v1.GET("/opportunities/:id", s.getOpportunity)
		v1.POST("/opportunities/:id/execute", s.executeOpportunity)
		v1.GET("/positions", s.listPositions)
		v1.POST("/positions/:id/close", s.closePosition)
		v1.GET("/stats", s.stats)
		v1.GET("/risk", s.risk)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens on port in the background. The listener is bound before
// Start returns so a port clash surfaces as an error.
func (s *Server) Start(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(ctx, "api server stopped", "error", err)
		}
	}()
	s.log.Info(ctx, "api server started", "port", port)
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug(c.Request.Context(), "api request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
