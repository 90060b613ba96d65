package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/handiism/albumpdf/internal/config"
	"github.com/handiism/albumpdf/internal/download"
	"github.com/handiism/albumpdf/internal/model"
	"github.com/handiism/albumpdf/internal/store"
)

// Service is what the HTTP layer needs from the download Manager.
type Service interface {
	Produce(ctx context.Context, albumID string, opts download.ProduceOptions) (*model.Document, error)
	Status(albumID string) (*store.JobRecord, error)
	Jobs() ([]store.JobRecord, error)
	DocumentFile(fileName string) (string, bool)
}

// Server exposes document production over HTTP.
//
// Routes:
//
//	POST /generate            {"album_id": "12345", "retry_count": 3, "force": false}
//	POST /download            {"id": "12345"}
//	GET  /download/:filename  12345.pdf as an attachment
//	GET  /status/:album_id    last job record
//	GET  /jobs                every job record, newest first
//	GET  /healthz
//	GET  /metrics
type Server struct {
	settings   *config.Settings
	service    Service
	engine     *gin.Engine
	httpServer *http.Server
	startTime  time.Time
}

// New creates a Server. gatherer backs /metrics; nil uses the default
// Prometheus registry.
func New(settings *config.Settings, service Service, gatherer prometheus.Gatherer) *Server {
	if !settings.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	engine := gin.New()
	engine.Use(LoggingMiddleware())
	engine.Use(gin.CustomRecovery(HandlePanics()))

	if settings.Server.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
		corsConfig.ExposeHeaders = []string{"Content-Disposition"}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		settings:  settings,
		service:   service,
		engine:    engine,
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              settings.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.setupRoutes(gatherer)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.engine.POST("/generate", s.handleGenerate)
	s.engine.POST("/download", s.handleDownloadAlias)
	s.engine.GET("/download/:filename", s.handleDownloadFile)
	s.engine.GET("/status/:album_id", s.handleStatus)
	s.engine.GET("/jobs", s.handleJobs)
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{
			Status:    statusError,
			ErrorCode: codeNotFound,
			Message:   "route not found",
		})
	})
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
