// Package transport exposes the query facade over HTTP.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chainfold/utxoindex-backend/internal/query"
)

const (
	readTimeout  = 30 * time.Second
	writeTimeout = 30 * time.Second
	idleTimeout  = 5 * time.Minute
)

// Server serves the read API.
type Server struct {
	facade *query.Facade
	logger *zap.Logger
	engine *gin.Engine
	hs     *http.Server
}

// NewServer builds the HTTP server and its routes.
func NewServer(facade *query.Facade, logger *zap.Logger) *Server {
	s := &Server{
		facade: facade,
		logger: logger.Named("http"),
	}
	s.initGin()
	return s
}

func (s *Server) initGin() {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", s.healthHandle())

	v1 := engine.Group("/v1")
	v1.GET("/address/:address", s.addressHandle())
	v1.GET("/address/:address/utxos", s.addressUTXOsHandle())
	v1.GET("/tx/:txid", s.transactionHandle())
	v1.GET("/block/:id", s.blockHandle())
	v1.GET("/stats", s.statsHandle())

	s.engine = engine
}

// Run starts listening on host:port without blocking.
func (s *Server) Run(host string, port int) {
	addr := fmt.Sprintf("%s:%d", host, port)
	hs := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	s.hs = hs

	go func() {
		if err := hs.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("listen", zap.Error(err))
		}
	}()
	s.logger.Info("listen", zap.String("addr", addr))
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.hs == nil {
		return nil
	}
	return s.hs.Shutdown(ctx)
}

// Handler returns the underlying router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
