// Package api wires the HTTP handlers onto the router.
package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-etl-pipeline/docs"
	"go-etl-pipeline/internal/api/handler"
	"go-etl-pipeline/pkg/router"
)

func RegisterRoutes(r *router.Router, h *handler.RunHandler) {
	r.POST("/api/v1/runs", h.CreateRun)
	r.GET("/api/v1/runs", h.ListRuns)
	// More specific routes first
	r.GET("/api/v1/runs/*/tasks", h.GetRunTasks)
	r.GET("/api/v1/runs/*/errors", h.GetRunErrors)
	r.POST("/api/v1/runs/*/cancel", h.CancelRun)
	// Generic run route last
	r.GET("/api/v1/runs/*", h.GetRun)

	r.GET("/api/v1/checkpoints", h.ListCheckpoints)
	r.DELETE("/api/v1/checkpoints/*/*", h.ResetCheckpoint)
	r.GET("/api/v1/profiles/*", h.GetProfiles)
	r.GET("/api/v1/artifacts/*/*", h.DownloadArtifact)

	r.GET("/swagger/*", router.HandlerFunc(httpSwagger.WrapHandler))
}
