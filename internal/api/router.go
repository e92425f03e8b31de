package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"go-research/internal/config"
	"go-research/internal/jobs"
)

const frontendFile = "./frontend/index.html"

func SetupRouter(cfg *config.Config, runner Runner, store *jobs.Store) *gin.Engine {
	r := gin.Default()

	// Frontend single page, when present next to the binary
	r.GET("/", func(c *gin.Context) {
		if _, err := os.Stat(frontendFile); err != nil {
			c.String(http.StatusOK, "go-research backend is running")
			return
		}
		c.File(frontendFile)
	})

	r.GET("/health", healthHandler)
	r.GET("/config", configHandler(cfg))

	// Synchronous research run
	r.POST("/research", ResearchHandler(runner, cfg.Search.MaxResults))

	// Fire-and-forget workflows with polling
	r.POST("/workflows", StartWorkflowHandler(store, cfg.Search.MaxResults))
	r.GET("/jobs", ListJobsHandler(store))
	r.GET("/jobs/:id", GetJobHandler(store))
	r.GET("/jobs/:id/report.pdf", JobReportHandler(store))

	// Live progress streaming
	r.GET("/ws/research", WSResearchHandler(runner, cfg.Search.MaxResults))

	return r
}
