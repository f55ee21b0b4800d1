package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khaledhikmat/vs-segment/pipeline"
)

// Server carries the services and the streams handlers report to. Either
// stream may be nil.
type Server struct {
	svcs        pipeline.ServicesFactory
	statsStream chan<- interface{}
	errorStream chan<- interface{}
}

func NewServer(svcs pipeline.ServicesFactory, statsStream, errorStream chan<- interface{}) *Server {
	return &Server{
		svcs:        svcs,
		statsStream: statsStream,
		errorStream: errorStream,
	}
}

// Router wires every route onto a fresh gin engine. Cross-origin requests
// are allowed from anywhere.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	router.Use(cors.New(corsCfg))

	router.MaxMultipartMemory = 32 << 20

	router.POST("/upload_image/", s.uploadImage)
	router.POST("/upload_video/", s.uploadVideo)
	router.GET("/get_file/*file_name", s.getFile)
	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.Static("/static", s.svcs.CfgSvc.GetStaticFolder())

	return router
}
