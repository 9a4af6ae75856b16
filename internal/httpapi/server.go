// Package httpapi is the illustrative Session REST surface: create a
// session, execute it, read it back, walk its tree, and append a
// checkpoint. Grounded on the reference agent-orchestrator example's
// gin.Engine setup (router.Use(gin.Logger(), gin.Recovery()), one handler
// method per route, gin.H JSON responses) generalized from its single
// in-memory map to internal/executor's tenant-scoped session lifecycle.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/R3E-Network/agent-orchestrator/internal/executor"
	"github.com/R3E-Network/agent-orchestrator/internal/logging"
	"github.com/R3E-Network/agent-orchestrator/internal/ratelimit"
)

// Server wraps a gin.Engine bound to an Executor.
type Server struct {
	engine  *executor.Executor
	logger  *logging.Logger
	router  *gin.Engine
	limiter *ratelimit.TenantLimiter
}

// New builds a Server with all routes registered, rate-limited per tenant
// using ratelimit's default budget.
func New(exec *executor.Executor, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{engine: exec, logger: logger, router: router, limiter: ratelimit.NewTenantLimiter(ratelimit.DefaultConfig())}
	s.registerRoutes()
	return s
}

// Router returns the underlying gin.Engine, e.g. for http.ListenAndServe.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) registerRoutes() {
	sessions := s.router.Group("/sessions", tenantMiddleware(), rateLimitMiddleware(s.limiter))
	sessions.POST("", s.createSession)
	sessions.GET("/:id", s.getSession)
	sessions.GET("/:id/tree", s.getTree)
	sessions.POST("/:id/execute", s.executeSession)
	sessions.POST("/:id/checkpoints", s.appendCheckpoint)
}
