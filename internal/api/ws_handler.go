package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"go-research/internal/pipeline"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket connection wrapper with mutex for thread-safe writes
type safeWSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *safeWSConn) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *safeWSConn) Close() error {
	return s.conn.Close()
}

// WSStageEvent is sent for each stage boundary the pipeline reports.
type WSStageEvent struct {
	Event  string `json:"event"`
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// GET /ws/research?query=...&max_results=N
//
// Streams stage progress events followed by a final result or error
// event, then closes. This backs the frontend's live progress feed.
func WSResearchHandler(runner Runner, defaultMaxResults int) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("query")
		if strings.TrimSpace(query) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "query must not be empty"}})
			return
		}
		maxResults, _ := strconv.Atoi(c.Query("max_results"))
		if maxResults <= 0 {
			maxResults = defaultMaxResults
		}

		rawConn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Println("WebSocket upgrade failed:", err)
			return
		}
		conn := &safeWSConn{conn: rawConn}
		defer conn.Close()

		obs := func(stage pipeline.Stage, status pipeline.Status, detail string) {
			if err := conn.WriteJSON(WSStageEvent{
				Event:  "stage",
				Stage:  string(stage),
				Status: string(status),
				Detail: detail,
			}); err != nil {
				log.Printf("[WS] failed to send stage event: %v", err)
			}
		}

		result, err := runner.Run(c.Request.Context(), query, maxResults, obs)
		if err != nil {
			_ = conn.WriteJSON(gin.H{"event": "error", "message": err.Error()})
			return
		}

		_ = conn.WriteJSON(gin.H{
			"event":           "result",
			"summary":         result.Summary,
			"sources":         result.Sources,
			"failed_fetches":  result.FailedFetches,
			"elapsed_seconds": result.ElapsedSeconds,
			"report_pdf":      result.Report.PDF,
		})
	}
}
