package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-research/internal/jobs"
)

// POST /workflows
func StartWorkflowHandler(store *jobs.Store, defaultMaxResults int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResearchRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "query must not be empty"}})
			return
		}
		if req.MaxResults <= 0 {
			req.MaxResults = defaultMaxResults
		}

		job := store.Start(req.Query, req.MaxResults)
		c.JSON(http.StatusAccepted, gin.H{
			"job_id": job.ID,
			"status": job.Status,
		})
	}
}

// GET /jobs
func ListJobsHandler(store *jobs.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"jobs": store.List()})
	}
}

// GET /jobs/:id
func GetJobHandler(store *jobs.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "job not found"}})
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

// GET /jobs/:id/report.pdf
func JobReportHandler(store *jobs.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		job, ok := store.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "job not found"}})
			return
		}
		pdf, ok := store.ReportPDF(id)
		if !ok {
			c.JSON(http.StatusConflict, gin.H{"error": gin.H{"message": fmt.Sprintf("report not ready, job is %s", job.Status)}})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "report-"+id+".pdf"))
		c.Data(http.StatusOK, "application/pdf", pdf)
	}
}
