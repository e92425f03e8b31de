package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"go-research/internal/jobs"
)

var errAlways = errors.New("summarize stage: llm provider error")

func newJobsRouter(runner Runner) (*gin.Engine, *jobs.Store) {
	gin.SetMode(gin.TestMode)
	store := jobs.NewStore(runner)
	r := gin.New()
	r.POST("/workflows", StartWorkflowHandler(store, 3))
	r.GET("/jobs", ListJobsHandler(store))
	r.GET("/jobs/:id", GetJobHandler(store))
	r.GET("/jobs/:id/report.pdf", JobReportHandler(store))
	return r, store
}

func startWorkflow(t *testing.T, r *gin.Engine, body string) string {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/workflows", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if resp.JobID == "" || resp.Status != "running" {
		t.Fatalf("unexpected workflow response: %+v", resp)
	}
	return resp.JobID
}

func pollJob(t *testing.T, r *gin.Engine, id string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/jobs/"+id, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		var job map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
			t.Fatalf("invalid job JSON: %v", err)
		}
		if job["status"] != "running" {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return nil
}

func TestWorkflow_Lifecycle(t *testing.T) {
	r, _ := newJobsRouter(&stubRunner{result: okResult()})

	id := startWorkflow(t, r, `{"query": "quantum computing basics", "max_results": 3}`)
	job := pollJob(t, r, id)
	if job["status"] != "finished" {
		t.Fatalf("expected finished job, got %v", job["status"])
	}
	if job["steps"] == nil {
		t.Error("expected step history in job")
	}

	// Report download
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/jobs/"+id+"/report.pdf", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for report, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
		t.Error("expected PDF signature in report body")
	}
}

func TestWorkflow_DefaultsMaxResults(t *testing.T) {
	stub := &stubRunner{result: okResult()}
	r, _ := newJobsRouter(stub)

	id := startWorkflow(t, r, `{"query": "quantum"}`)
	pollJob(t, r, id)
	if got := stub.gotMax.Load(); got != 3 {
		t.Errorf("expected configured default of 3 results, got %d", got)
	}
}

func TestWorkflow_BadRequest(t *testing.T) {
	r, _ := newJobsRouter(&stubRunner{result: okResult()})
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/workflows", bytes.NewReader([]byte(`{"query": ""}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestJob_NotFound(t *testing.T) {
	r, _ := newJobsRouter(&stubRunner{result: okResult()})
	for _, path := range []string{"/jobs/unknown", "/jobs/unknown/report.pdf"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", path, nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestJobReport_NotReadyForFailedJob(t *testing.T) {
	r, _ := newJobsRouter(&stubRunner{err: errAlways})
	id := startWorkflow(t, r, `{"query": "quantum"}`)
	job := pollJob(t, r, id)
	if job["status"] != "failed" {
		t.Fatalf("expected failed job, got %v", job["status"])
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/jobs/"+id+"/report.pdf", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for failed job report, got %d", w.Code)
	}
}

func TestListJobs(t *testing.T) {
	r, _ := newJobsRouter(&stubRunner{result: okResult()})
	id := startWorkflow(t, r, `{"query": "quantum"}`)
	pollJob(t, r, id)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/jobs", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Jobs []map[string]interface{} `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid list JSON: %v", err)
	}
	if len(resp.Jobs) != 1 {
		t.Errorf("expected 1 job, got %d", len(resp.Jobs))
	}
}
