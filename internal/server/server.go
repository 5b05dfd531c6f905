package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/asmexplain/internal/artifact"
	"github.com/dshills/asmexplain/internal/explain"
	"github.com/dshills/asmexplain/internal/logging"
	"github.com/dshills/asmexplain/internal/metrics"
)

// ShutdownTimeout bounds how long Run waits for in-flight requests on shutdown.
const ShutdownTimeout = 10 * time.Second

// Explainer is the part of the explanation service the server needs.
type Explainer interface {
	Explain(ctx context.Context, fileID, address string) (explain.Record, error)
}

// IndexLoader reads a file's function index.
type IndexLoader interface {
	LoadIndex(fileID string) ([]artifact.Function, error)
}

// Options configures a Server.
type Options struct {
	Addr      string
	Explainer Explainer
	Index     IndexLoader
	// Gatherer backs /metrics. Nil disables the route.
	Gatherer    prometheus.Gatherer
	CORSOrigins []string
	Logger      *log.Logger
}

// Server is the HTTP front end of the explanation service.
type Server struct {
	addr      string
	router    *gin.Engine
	explainer Explainer
	index     IndexLoader
	logger    *log.Logger
}

// New builds the router and registers all routes.
func New(opts Options) *Server {
	s := &Server{
		addr:      opts.Addr,
		explainer: opts.Explainer,
		index:     opts.Index,
		logger:    logging.OrDiscard(opts.Logger),
	}

	r := gin.New()
	r.Use(requestID(), recovery(s.logger), accessLog(s.logger), cors(opts.CORSOrigins))

	r.GET("/health", s.handleHealth)
	r.GET("/explain/:fileId/:address", s.handleExplain)
	r.OPTIONS("/explain/:fileId/:address", noContent)
	r.GET("/functions/:fileId", s.handleFunctions)
	r.OPTIONS("/functions/:fileId", noContent)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(opts.Gatherer)))
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorBody{Detail: "Not Found"})
	})

	s.router = r
	return s
}

// Router returns the underlying gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves HTTP on the configured address until ctx is done, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is like Run but accepts connections on ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleExplain(c *gin.Context) {
	rec, err := s.explainer.Explain(c.Request.Context(), c.Param("fileId"), c.Param("address"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

type functionsResponse struct {
	FileID    string              `json:"fileId"`
	Functions []artifact.Function `json:"functions"`
}

func (s *Server) handleFunctions(c *gin.Context) {
	fileID := c.Param("fileId")
	if s.index == nil {
		s.fail(c, &artifact.NotFoundError{FileID: fileID})
		return
	}
	fns, err := s.index.LoadIndex(fileID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if fns == nil {
		fns = []artifact.Function{}
	}
	c.JSON(http.StatusOK, functionsResponse{FileID: fileID, Functions: fns})
}

func (s *Server) fail(c *gin.Context, err error) {
	status, body := StatusFor(err)
	_ = c.Error(err)
	s.logger.Debug("request failed", "kind", explain.ErrorLabel(err), "request_id", RequestIDFrom(c))
	c.AbortWithStatusJSON(status, body)
}
