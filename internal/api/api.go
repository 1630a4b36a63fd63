// Package api is the read-only HTTP surface: current status, the thought
// log, a live websocket stream, and a manual tick trigger for debugging.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"personad/internal/brain"
	"personad/internal/storage"
)

// ThoughtReader is the slice of storage the API reads.
type ThoughtReader interface {
	RecentThoughts(n int) ([]storage.Thought, error)
}

type Server struct {
	brain  *brain.Brain
	store  ThoughtReader
	hub    *Hub
	engine *gin.Engine
	http   *http.Server
}

func NewServer(b *brain.Brain, store ThoughtReader, hub *Hub, addr string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		brain:  b,
		store:  store,
		hub:    hub,
		engine: engine,
		http:   &http.Server{Addr: addr, Handler: engine},
	}

	engine.GET("/api/status", s.handleStatus)
	engine.GET("/api/thoughts", s.handleThoughts)
	engine.POST("/api/tick", s.handleTick)
	engine.GET("/ws", func(c *gin.Context) { hub.serveWS(c.Writer, c.Request) })

	return s
}

// Start serves until Shutdown.
func (s *Server) Start() {
	go func() {
		log.Info().Str("component", "api").Str("addr", s.http.Addr).Msg("listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Str("component", "api").Err(err).Msg("http server stopped")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.brain.Status())
}

func (s *Server) handleThoughts(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	thoughts, err := s.store.RecentThoughts(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, thoughts)
}

func (s *Server) handleTick(c *gin.Context) {
	s.brain.ForceTick()
	c.JSON(http.StatusAccepted, gin.H{"status": "tick scheduled"})
}
