// Package rest exposes the gateway's HTTP surface: procedure submission
// endpoints plus read endpoints for recorded events and webhook
// subscriptions. Handlers stay thin; every rule lives in the domain services.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gabapcia/meshgate/internal/engine"
	"github.com/gabapcia/meshgate/internal/events"
	"github.com/gabapcia/meshgate/internal/pkg/logger"
	"github.com/gabapcia/meshgate/internal/subscriptions"
	"github.com/gabapcia/meshgate/internal/transactions"

	"github.com/gin-gonic/gin"
)

const (
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 15 * time.Second
	defaultIdleTimeout  = 60 * time.Second
)

// Server is the gateway's HTTP server.
type Server struct {
	server *http.Server

	engine        engine.Engine
	transactions  transactions.Service
	events        events.Service
	subscriptions subscriptions.Service
}

// NewServer wires the REST surface on top of the domain services. The engine
// is only consulted for procedure lookups; invocation goes through the
// transaction service.
func NewServer(
	addr string,
	eng engine.Engine,
	txs transactions.Service,
	evs events.Service,
	subs subscriptions.Service,
) *Server {
	s := &Server{
		engine:        eng,
		transactions:  txs,
		events:        evs,
		subscriptions: subs,
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router(),
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	return s
}

// router builds the gin engine with its middleware chain and routes.
func (s *Server) router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestIDMiddleware(), loggingMiddleware())

	router.GET("/health", s.healthHandler)

	v1 := router.Group("/v1")
	{
		v1.POST("/assets", s.createAssetHandler)
		v1.POST("/settlements/instructions", s.addInstructionHandler)
		v1.GET("/events/:id", s.getEventHandler)
		v1.GET("/subscriptions/:id", s.getSubscriptionHandler)
	}

	return router
}

// Start runs the server until it is shut down or fails.
func (s *Server) Start(ctx context.Context) error {
	logger.Info(ctx, "starting http server", "addr", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown stops accepting new connections and waits for in-flight requests
// to finish, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info(ctx, "shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
