// Package api exposes the exchange core over HTTP. Token validation is the
// Account & Position Service's job; handlers only extract the bearer token
// and pass it along.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"exchange-core/internal/admission"
	"exchange-core/internal/bets"
	"exchange-core/internal/events"
	"exchange-core/pkg/db"
)

// Server wires HTTP endpoints around the core services.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	Admission *admission.Controller
	Bets      *bets.Service
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	UseMockFeed bool
	Version     string
}

// Options tunes the middleware stack.
type Options struct {
	RateLimitPerSecond float64
	RequestTimeout     time.Duration
}

func NewServer(bus *events.Bus, database *db.Database, admissionCtl *admission.Controller, betSvc *bets.Service, meta SystemMeta, opts Options) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())                    // Panic recovery (first)
	r.Use(RequestIDMiddleware())             // Request ID tracking
	r.Use(RequestLogger())                   // Request logging (after ID is set)
	r.Use(RateLimitMiddleware(opts.RateLimitPerSecond))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(CORSMiddleware()) // CORS (last before routes)

	s := &Server{
		Router:    r,
		Bus:       bus,
		DB:        database,
		Admission: admissionCtl,
		Bets:      betSvc,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)

		protected := api.Group("")
		protected.Use(BearerTokenMiddleware())
		{
			protected.POST("/orders", s.createOrder)
			protected.GET("/orders", s.getAllOrders)
			protected.GET("/orders/my", s.getMyOrders)
			protected.PUT("/orders/:id/approve", s.approveOrder)
			protected.PUT("/orders/:id/reject", s.rejectOrder)

			protected.GET("/options", s.getOptions)
			protected.POST("/options/:id/bets", s.placeBet)
			protected.GET("/bets/my", s.getMyBets)
			protected.DELETE("/bets/:id", s.rejectBet)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":       s.Meta.Version,
		"use_mock_feed": s.Meta.UseMockFeed,
	})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
