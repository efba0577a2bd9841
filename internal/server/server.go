// Package server exposes the engine operations over HTTP/JSON and streams
// resource_monitor samples over a websocket.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"github.com/Dicklesworthstone/osdiag/internal/engine"
	"github.com/Dicklesworthstone/osdiag/internal/sampler"
)

// Server routes requests to one Engine.
type Server struct {
	engine   *engine.Engine
	log      hclog.Logger
	version  string
	router   *gin.Engine
	upgrader websocket.Upgrader
}

func New(e *engine.Engine, log hclog.Logger, version string) *Server {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	s := &Server{
		engine:  e,
		log:     log.Named("server"),
		version: version,
		router:  gin.New(),
	}
	s.router.Use(gin.Recovery(), s.logRequests())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		api.GET("/health", s.health)
		api.GET("/tools", s.listTools)
		api.POST("/tools/:name", s.callTool)
		api.GET("/monitor/ws", s.monitorWS)
	}
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request", "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration", time.Since(start))
	}
}

func (s *Server) health(c *gin.Context) {
	success(c, gin.H{
		"status":      "up",
		"initialized": s.engine.Initialized(),
		"timestamp":   time.Now().Format(time.RFC3339),
		"version":     s.version,
	})
}

func (s *Server) listTools(c *gin.Context) {
	success(c, engine.Tools())
}

func (s *Server) callTool(c *gin.Context) {
	var args engine.Args
	if err := c.ShouldBindJSON(&args); err != nil && !errors.Is(err, io.EOF) {
		fail(c, CodeInvalidArgument, err.Error())
		return
	}
	out, err := s.engine.Call(c.Request.Context(), c.Param("name"), args)
	if err != nil {
		failErr(c, err)
		return
	}
	success(c, out)
}

// Frame is one websocket message of a monitor stream.
type Frame struct {
	Type  string `json:"type"` // sample, report, or error
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// monitorWS runs one resource_monitor window, sending every gauge sample
// and then the report before closing.
func (s *Server) monitorWS(c *gin.Context) {
	if !s.engine.Initialized() {
		fail(c, CodeNotInitialized, "")
		return
	}
	interval := sampler.DefaultIntervalSeconds
	if v := c.Query("interval_seconds"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail(c, CodeInvalidArgument, "interval_seconds must be an integer")
			return
		}
		interval = n
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	send := func(f Frame) {
		if err := conn.WriteJSON(f); err != nil {
			s.log.Debug("websocket write", "error", err)
		}
	}
	report, err := s.engine.ResourceMonitor(c.Request.Context(), interval, func(gs sampler.GaugeSample) {
		send(Frame{Type: "sample", Data: gs})
	})
	if err != nil {
		send(Frame{Type: "error", Error: err.Error()})
	} else {
		send(Frame{Type: "report", Data: report})
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
