package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dougsko/lorahat/pkg/engine"
	"github.com/dougsko/lorahat/pkg/logging"
	"github.com/dougsko/lorahat/pkg/storage"
)

// Version is reported by the status endpoint
var Version = "dev"

// StatusProvider is satisfied by engine.Receiver and engine.Transmitter
type StatusProvider interface {
	Status() engine.Status
}

// Server is the read-only HTTP view of a running loop
type Server struct {
	status StatusProvider
	store  *storage.FrameStore
	hub    *Hub
	router *gin.Engine
	server *http.Server
}

// NewServer builds the router. store and hub may be nil.
func NewServer(addr string, status StatusProvider, store *storage.FrameStore, hub *Hub) *Server {
	s := &Server{
		status: status,
		store:  store,
		hub:    hub,
	}

	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())

	api := router.Group("/api/v1")
	{
		api.GET("/status", s.handleGetStatus)
		api.GET("/frames", s.handleGetFrames)
		api.GET("/stats", s.handleGetStats)
		api.GET("/ws", s.handleWebSocket)
	}

	s.router = router
	s.server = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Infof("web", "listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Debug("web", fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path), logging.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
	}
}

// handleGetStatus returns the loop snapshot
func (s *Server) handleGetStatus(c *gin.Context) {
	resp := gin.H{
		"status":  "running",
		"version": Version,
	}
	if s.status != nil {
		resp["engine"] = s.status.Status()
	}
	if s.hub != nil {
		resp["ws_clients"] = s.hub.ClientCount()
	}
	c.JSON(http.StatusOK, resp)
}

// handleGetFrames lists stored frames, newest first
func (s *Server) handleGetFrames(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "frame store not configured"})
		return
	}

	query, search, err := parseFrameQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var frames []storage.FrameRecord
	if search != "" {
		frames, err = s.store.SearchFrames(search, query.Limit)
	} else {
		frames, err = s.store.GetFrames(query)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if frames == nil {
		frames = []storage.FrameRecord{}
	}

	c.JSON(http.StatusOK, gin.H{
		"frames": frames,
		"count":  len(frames),
	})
}

func parseFrameQuery(c *gin.Context) (storage.FrameQuery, string, error) {
	var q storage.FrameQuery

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		return q, "", fmt.Errorf("invalid limit %q", c.Query("limit"))
	}
	q.Limit = limit

	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return q, "", fmt.Errorf("invalid offset %q", v)
		}
		q.Offset = offset
	}

	if v := c.Query("source"); v != "" {
		source, err := strconv.Atoi(v)
		if err != nil {
			return q, "", fmt.Errorf("invalid source %q", v)
		}
		q.Source = &source
	}

	if v := c.Query("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return q, "", fmt.Errorf("invalid since %q: want RFC3339", v)
		}
		q.Since = &since
	}

	switch dir := strings.ToUpper(c.Query("direction")); dir {
	case "", storage.DirectionRX, storage.DirectionTX:
		q.Direction = dir
	default:
		return q, "", fmt.Errorf("invalid direction %q", c.Query("direction"))
	}

	q.Session = c.Query("session")
	return q, c.Query("q"), nil
}

// handleGetStats returns lifetime counters and per-source summaries
func (s *Server) handleGetStats(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "frame store not configured"})
		return
	}

	stats, err := s.store.GetFrameStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	sources, err := s.store.GetSources(0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sources == nil {
		sources = []storage.SourceSummary{}
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":   stats,
		"sources": sources,
	})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live feed not enabled"})
		return
	}
	ServeWs(s.hub, c.Writer, c.Request)
}
