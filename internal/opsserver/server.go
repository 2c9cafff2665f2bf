// Package opsserver publishes syncer progress, pair reserves and metrics over HTTP.
package opsserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"reserveSync/internal/storage"
	"reserveSync/internal/syncer"
)

const (
	RouteHealth  = "/healthz"
	RouteStatus  = "/status"
	RoutePair    = "/pairs/:address"
	RouteMetrics = "/metrics"
	RouteRPC     = "/rpc"
)

// StatusProvider reports coordinator progress.
type StatusProvider interface {
	Status() syncer.Status
}

// Server serves the ops routes.
type Server struct {
	addr     string
	status   StatusProvider
	store    storage.PairStore
	tokens   TokenResolver
	gatherer prometheus.Gatherer
	rpc      *rpc.Server
	logger   *zap.Logger
}

// New builds the server. tokens may be nil, in which case prices are reported in raw units.
func New(addr string, status StatusProvider, store storage.PairStore, tokens TokenResolver, gatherer prometheus.Gatherer, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("syncer", &API{status: status, store: store, tokens: tokens}); err != nil {
		return nil, err
	}

	return &Server{
		addr:     addr,
		status:   status,
		store:    store,
		tokens:   tokens,
		gatherer: gatherer,
		rpc:      rpcServer,
		logger:   logger,
	}, nil
}

// SetupRouter hooks up routes and handlers.
func (s *Server) SetupRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.accessLog())

	router.GET(RouteHealth, s.Health)
	router.GET(RouteStatus, s.Status)
	router.GET(RoutePair, s.Pair)
	router.GET(RouteMetrics, gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	router.POST(RouteRPC, gin.WrapH(s.rpc))

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ops server listening", zap.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.rpc.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.rpc.Stop()
	return err
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Status(c *gin.Context) {
	c.JSON(http.StatusOK, s.status.Status())
}

func (s *Server) Pair(c *gin.Context) {
	view, err := lookupPair(c.Request.Context(), s.store, s.tokens, c.Param("address"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pair not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": view})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("ops request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
