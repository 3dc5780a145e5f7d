package telemetry

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Server is a read-only JSON API over a telemetry Store.
type Server struct {
	router *gin.Engine
	store  *Store
	port   string
}

// NewServer builds a Server listening on port, reading from store.
func NewServer(store *Store, port string) *Server {
	router := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	config.AllowMethods = []string{"GET", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(config))

	s := &Server{router: router, store: store, port: port}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	api.GET("/episodes", s.listEpisodes)
	api.GET("/episodes/:id", s.getEpisode)
	api.GET("/episodes/:id/slots", s.getSlots)
	api.GET("/health", s.healthCheck)
}

// Start runs the HTTP server, blocking until it exits.
func (s *Server) Start() error {
	return s.router.Run(":" + s.port)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now()})
}

func (s *Server) listEpisodes(c *gin.Context) {
	episodes, err := s.store.ListEpisodes()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, episodes)
}

func (s *Server) getEpisode(c *gin.Context) {
	ep, err := s.store.GetEpisode(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "episode not found"})
		return
	}
	c.JSON(http.StatusOK, ep)
}

func (s *Server) getSlots(c *gin.Context) {
	slots, err := s.store.GetSlotSnapshots(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, slots)
}
