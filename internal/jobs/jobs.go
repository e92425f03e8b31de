package jobs

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-research/internal/pipeline"
)

// Status is the lifecycle state of a workflow job.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// LogEntry is one timestamped line of job history.
type LogEntry struct {
	TS      time.Time `json:"ts"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// StepRecord captures one stage boundary event.
type StepRecord struct {
	TS     time.Time `json:"ts"`
	Stage  string    `json:"stage"`
	Status string    `json:"status"`
	Detail string    `json:"detail,omitempty"`
}

// Job is one fire-and-forget research workflow. Jobs live in memory only
// and die with the process.
type Job struct {
	ID          string           `json:"id"`
	Query       string           `json:"query"`
	MaxResults  int              `json:"max_results"`
	Status      Status           `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Logs        []LogEntry       `json:"logs"`
	Steps       []StepRecord     `json:"steps"`
	Error       string           `json:"error,omitempty"`
	Result      *pipeline.Result `json:"result,omitempty"`
}

// Runner executes one pipeline run; satisfied by *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, query string, maxResults int, obs pipeline.Observer) (*pipeline.Result, error)
}

// Store owns all jobs and runs them in background goroutines.
type Store struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	runner Runner
}

// NewStore creates an empty job store backed by the given runner.
func NewStore(runner Runner) *Store {
	return &Store{
		jobs:   make(map[string]*Job),
		runner: runner,
	}
}

// Start registers a new job and launches its pipeline run in the
// background. The returned snapshot has status running.
func (s *Store) Start(query string, maxResults int) Job {
	job := &Job{
		ID:          uuid.New().String(),
		Query:       query,
		MaxResults:  maxResults,
		Status:      StatusRunning,
		SubmittedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.appendLog(job.ID, "info", fmt.Sprintf("workflow started for query %q", query))
	go s.execute(job.ID, query, maxResults)

	return s.snapshot(job.ID)
}

func (s *Store) execute(id, query string, maxResults int) {
	obs := func(stage pipeline.Stage, status pipeline.Status, detail string) {
		s.appendStep(id, string(stage), string(status), detail)
	}

	result, err := s.runner.Run(context.Background(), query, maxResults, obs)

	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.FinishedAt = &now
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		job.Logs = append(job.Logs, LogEntry{TS: now, Level: "error", Message: err.Error()})
		log.Printf("[Jobs] job %s failed: %v", id, err)
		return
	}
	job.Status = StatusFinished
	job.Result = result
	job.Logs = append(job.Logs, LogEntry{TS: now, Level: "info", Message: "workflow completed successfully"})
}

// Get returns a snapshot of a job.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.Lock()
	_, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return Job{}, false
	}
	return s.snapshot(id), true
}

// List returns snapshots of all jobs, newest first.
func (s *Store) List() []Job {
	s.mu.Lock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	out := make([]Job, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.snapshot(id))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out
}

// ReportPDF returns the rendered PDF of a finished job.
func (s *Store) ReportPDF(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status != StatusFinished || job.Result == nil {
		return nil, false
	}
	return job.Result.Report.PDF, true
}

func (s *Store) appendLog(id, level, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Logs = append(job.Logs, LogEntry{TS: time.Now().UTC(), Level: level, Message: msg})
	}
}

func (s *Store) appendStep(id, stage, status, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Steps = append(job.Steps, StepRecord{TS: time.Now().UTC(), Stage: stage, Status: status, Detail: detail})
	}
}

// snapshot copies a job under the lock so callers never share slices
// with the running goroutine.
func (s *Store) snapshot(id string) Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.jobs[id]
	out := *job
	out.Logs = append([]LogEntry(nil), job.Logs...)
	out.Steps = append([]StepRecord(nil), job.Steps...)
	return out
}
