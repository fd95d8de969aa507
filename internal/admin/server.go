package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rednetexplorer/core/internal/names"
	"github.com/rednetexplorer/core/internal/peer"
	"github.com/rednetexplorer/core/internal/searchindex"
)

// Sources bundles the read-only collaborators Server reports on. All
// fields are optional; a nil source leaves its section zero-valued.
type Sources struct {
	Peers       *peer.Registry
	Local       *names.LocalRegistry
	Cache       *names.Cache
	Convergence *names.Convergence
	Index       *searchindex.Index
	Crawler     func() CrawlerStats
}

// Server is the node's read-only observability HTTP API: health and
// counters only, mounted on its own host:port, never reachable from an
// rdnt:// request and never able to mutate protocol state. It follows a
// gin-engine-plus-handler shape, trimmed to the two routes that carry real
// ambient value with no dashboard or admin UI served alongside them.
type Server struct {
	engine    *gin.Engine
	http      *http.Server
	startTime time.Time
	sources   Sources
	logger    *slog.Logger
}

// New builds a Server bound to addr ("host:port"). Call ListenAndServe to
// start serving and Shutdown to stop.
func New(addr string, sources Sources, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:    engine,
		startTime: time.Now(),
		sources:   sources,
		logger:    logger,
	}

	engine.GET("/api/v1/health", s.Health)
	engine.GET("/api/v1/stats", s.Stats)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Addr returns the bound listen address.
func (s *Server) Addr() string { return s.http.Addr }

// ListenAndServe starts serving until Shutdown is called or an error occurs.
func (s *Server) ListenAndServe() error {
	s.logger.Info("admin API starting", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) uptime() time.Duration { return time.Since(s.startTime) }

func addrOf(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
