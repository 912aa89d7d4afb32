// Package httpapi exposes the registry over HTTP. Mutating routes
// identify the caller through the X-Registry-Actor header; lookups and
// verification are public. Typed registry failures map to stable error
// codes so clients can branch without parsing messages.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"provcore/docs/schema"
	"provcore/docs/schema/openapi"
	"provcore/internal/archive"
	"provcore/internal/core"
	"provcore/internal/pubsub"
	"provcore/internal/ratelimit"
	"provcore/pkg/domain"
)

// Config carries transport settings beyond the server's dependencies.
// RateLimitRequests <= 0 disables limiting on the public verification
// route.
type Config struct {
	RateLimitRequests   int
	RateLimitWindow     time.Duration
	RateLimitFailClosed bool
}

// Server hosts the registry API. Construct it with NewServer and mount
// Handler on an http.Server; Close releases the event bridge.
type Server struct {
	cfg      Config
	engine   *gin.Engine
	service  *core.Service
	archiver *archive.Worker
	limiter  ratelimit.Limiter
	events   *pubsub.Broker[domain.Event]
	metrics  http.Handler
	log      core.Logger

	unsubscribe func()
}

// ServerDeps bundles the collaborators a Server needs. Service is
// required; a nil Archiver disables the archive routes, a nil Limiter
// disables rate limiting, a nil Metrics handler leaves /metrics
// unmounted.
type ServerDeps struct {
	Service  *core.Service
	Archiver *archive.Worker
	Limiter  ratelimit.Limiter
	Metrics  http.Handler
	Logger   core.Logger
}

// NewServer wires the routes and starts bridging registry events into
// the live stream.
func NewServer(cfg Config, deps ServerDeps) *Server {
	log := deps.Logger
	if log == nil {
		log = core.NoopLogger()
	}
	s := &Server{
		cfg:      cfg,
		service:  deps.Service,
		archiver: deps.Archiver,
		limiter:  deps.Limiter,
		events:   pubsub.NewBroker[domain.Event](),
		metrics:  deps.Metrics,
		log:      log,
	}
	s.unsubscribe = s.service.Subscribe(func(event domain.Event) {
		s.events.Publish(event)
	})

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestIDMiddleware())
	engine.Use(s.logRequests())
	s.engine = engine
	s.routes()
	return s
}

// logRequests emits one structured line per completed request.
func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", requestID(c),
		)
	}
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/openapi.yaml", s.handleOpenAPI)
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics))
	}

	v1 := s.engine.Group("/v1")

	v1.GET("/products", s.handleTotalProducts)
	v1.GET("/products/:id", s.handleGetProduct)
	v1.GET("/products/:id/history", s.handleGetHistory)
	v1.GET("/products/:id/verify", s.handleVerifyProduct)
	v1.GET("/participants", s.handleListParticipants)
	v1.GET("/participants/:identity", s.handleGetParticipant)
	v1.GET("/archives/:id", s.handleGetArchiveJob)
	v1.GET("/events", s.handleEvents)

	authed := v1.Group("")
	authed.Use(actorMiddleware())
	authed.POST("/products", s.handleRegisterProduct)
	authed.POST("/products/:id/transfer", s.handleTransferProduct)
	authed.POST("/products/:id/archive", s.handleArchiveProduct)
	authed.POST("/participants", s.handleAuthorizeParticipant)
}

// Handler returns the routed handler for mounting on an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Close detaches the server from the registry event dispatcher and
// terminates open event streams.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.events.Close()
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"api_version": schema.DocumentVersion(),
	})
}

func (s *Server) handleOpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", openapi.Spec())
}
