package apihttp

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradekuant/internal/dashboard"
	"tradekuant/internal/logger"
	"tradekuant/internal/store"
	"tradekuant/internal/syncjob"
)

// Server hosts the public dashboard API, the admin API and the cron
// sync endpoints.
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig lists the server dependencies.
type ServerConfig struct {
	Addr       string
	Store      store.Store
	Dashboard  *dashboard.Service
	Sync       *syncjob.Service
	AdminToken string
	SyncSecret string
}

// NewServer wires the gin engine and all route groups.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil || cfg.Dashboard == nil {
		return nil, errors.New("http server requires store and dashboard service")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := &handlers{
		store: cfg.Store,
		dash:  cfg.Dashboard,
		sync:  cfg.Sync,
	}
	h.registerPublic(router.Group("/api"))
	h.registerCharts(router.Group("/charts"))
	h.registerAdmin(router.Group("/api/admin", bearerAuth(cfg.AdminToken)))
	h.registerCron(router.Group("/api/cron", bearerAuth(cfg.SyncSecret)))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}

// bearerAuth gates a route group behind a static bearer token. An empty
// token rejects every call rather than opening the group.
func bearerAuth(token string) gin.HandlerFunc {
	const prefix = "Bearer "
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		ok := token != "" &&
			len(header) > len(prefix) &&
			header[:len(prefix)] == prefix &&
			subtle.ConstantTimeCompare([]byte(header[len(prefix):]), []byte(token)) == 1
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}
