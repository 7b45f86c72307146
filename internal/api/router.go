package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"calc-pipeline/internal/api/handler"
	"calc-pipeline/pkg/logger"
	"calc-pipeline/pkg/router"
	"calc-pipeline/pkg/utils"
)

// RegisterRoutes mounts the run API onto the router
func RegisterRoutes(r *router.Router) {
	r.POST("/api/v1/runs", handler.CreateRun)
	r.GET("/api/v1/runs", handler.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/trace", handler.GetRunTrace)
	r.GET("/api/v1/runs/*/errors", handler.GetRunErrors)
	r.GET("/api/v1/runs/*/result", handler.GetRunResult)
	r.GET("/api/v1/runs/*/files", handler.GetRunFiles)
	// Generic run route last
	r.GET("/api/v1/runs/*", handler.GetRun)
	r.GET("/api/v1/registrations", handler.ListRegistrations)
	r.GET("/api/v1/download/*", handler.DownloadFile)
}

// NewRouter assembles the full HTTP surface: the run API plus the
// swagger UI
func NewRouter(log *logger.Logger, om *utils.OutputManager) *router.Router {
	handler.Init(log, om)
	r := router.New(log)
	RegisterRoutes(r)
	r.GET("/swagger/*", func(w http.ResponseWriter, req *http.Request) {
		httpSwagger.WrapHandler(w, req)
	})
	return r
}
