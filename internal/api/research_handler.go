package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"go-research/internal/llm"
	"go-research/internal/pipeline"
	"go-research/internal/search"
	"go-research/internal/summarize"
)

// Runner executes one pipeline run; satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, query string, maxResults int, obs pipeline.Observer) (*pipeline.Result, error)
}

type ResearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type ResearchResponse struct {
	Summary        summarize.Summary `json:"summary"`
	Sources        []search.Result   `json:"sources"`
	FailedFetches  int               `json:"failed_fetches"`
	ElapsedSeconds float64           `json:"elapsed_seconds"`
	ReportPDF      []byte            `json:"report_pdf"`
}

// POST /research
func ResearchHandler(runner Runner, defaultMaxResults int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResearchRequest
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "query must not be empty"}})
			return
		}
		if req.MaxResults <= 0 {
			req.MaxResults = defaultMaxResults
		}

		obs := func(stage pipeline.Stage, status pipeline.Status, detail string) {
			log.Printf("[Research] %s %s %s", stage, status, detail)
		}

		result, err := runner.Run(c.Request.Context(), req.Query, req.MaxResults, obs)
		if err != nil {
			c.JSON(statusForError(err), gin.H{"error": gin.H{"message": err.Error()}})
			return
		}

		c.JSON(http.StatusOK, ResearchResponse{
			Summary:        result.Summary,
			Sources:        result.Sources,
			FailedFetches:  result.FailedFetches,
			ElapsedSeconds: result.ElapsedSeconds,
			ReportPDF:      result.Report.PDF,
		})
	}
}

// statusForError maps pipeline failures to HTTP statuses. The error
// message already names the failing stage. Extraction errors never
// reach here: the pipeline absorbs them per URL.
func statusForError(err error) int {
	switch {
	case errors.Is(err, search.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, summarize.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, search.ErrProvider),
		errors.Is(err, llm.ErrProvider),
		errors.Is(err, summarize.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
