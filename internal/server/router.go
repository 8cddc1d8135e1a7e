// Package server exposes the services over HTTP (gin) and reports liveness
// over the gRPC health protocol.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/files-manager/internal/middleware"
	"github.com/PaulBabatuyi/files-manager/internal/service"
)

type Server struct {
	files   *service.FileService
	users   *service.UserService
	app     *service.AppService
	logger  *zap.Logger
	metrics middleware.HTTPObserver
}

type Options struct {
	Files   *service.FileService
	Users   *service.UserService
	App     *service.AppService
	Logger  *zap.Logger
	Metrics middleware.HTTPObserver // optional
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		files:   opts.Files,
		users:   opts.Users,
		app:     opts.App,
		logger:  logger.Named("http"),
		metrics: opts.Metrics,
	}
}

// Engine builds the gin router with every route registered.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(s.logger), gin.Recovery())
	if s.metrics != nil {
		r.Use(middleware.RequestMetrics(s.metrics))
	}

	required := middleware.RequireToken(s.users)
	optional := middleware.OptionalToken(s.users)

	r.GET("/status", s.getStatus)
	r.GET("/stats", s.getStats)

	r.POST("/users", s.postUser)
	r.GET("/connect", s.getConnect)
	r.GET("/disconnect", s.getDisconnect)
	r.GET("/users/me", s.getMe)

	files := r.Group("/files")
	files.POST("", required, s.postFile)
	files.GET("", required, s.listFiles)
	files.GET("/:id", optional, s.getFile)
	files.PUT("/:id/publish", required, s.putPublish)
	files.PUT("/:id/unpublish", required, s.putUnpublish)
	files.GET("/:id/data", optional, s.getFileData)

	return r
}

// Handler is the router wrapped with response compression.
func (s *Server) Handler() http.Handler {
	return gzhttp.GzipHandler(s.Engine())
}
