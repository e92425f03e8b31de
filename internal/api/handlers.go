package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-research/internal/config"
)

// GET /health
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GET /config
func configHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only return non-sensitive config fields
		c.JSON(http.StatusOK, gin.H{
			"server": gin.H{
				"host": cfg.Server.Host,
				"port": cfg.Server.Port,
			},
			"search": gin.H{
				"engine":      cfg.Search.Engine,
				"max_results": cfg.Search.MaxResults,
			},
			"llm": gin.H{
				"model": cfg.LLM.Model,
			},
			"pipeline": cfg.Pipeline,
		})
	}
}
