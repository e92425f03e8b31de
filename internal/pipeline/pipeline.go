package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"go-research/internal/extract"
	"go-research/internal/report"
	"go-research/internal/search"
	"go-research/internal/summarize"
)

// Stage identifies one step of the linear pipeline.
type Stage string

const (
	StageSearch    Stage = "search"
	StageExtract   Stage = "extract"
	StageSummarize Stage = "summarize"
	StageRender    Stage = "render"
)

// Status describes a stage boundary event.
type Status string

const (
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusDegraded Status = "degraded"
)

// Observer receives progress events at every stage boundary. It decouples
// pipeline logic from whatever displays the progress (logs, jobs, websockets).
// Degraded events fire from concurrent extraction goroutines, so observers
// must be safe for concurrent use.
type Observer func(stage Stage, status Status, detail string)

// Searcher is the search stage contract.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]search.Result, error)
}

// Extractor is the extraction stage contract.
type Extractor interface {
	Extract(ctx context.Context, url string) (extract.Document, error)
}

// Summarizer is the summarization stage contract.
type Summarizer interface {
	Summarize(ctx context.Context, query string, docs []extract.Document) (summarize.Summary, error)
}

// Renderer is the report stage contract.
type Renderer interface {
	Render(summary summarize.Summary) (report.Report, error)
}

// Config bounds the pipeline's network calls and retry behavior.
type Config struct {
	SearchTimeout    time.Duration
	FetchTimeout     time.Duration
	LLMTimeout       time.Duration
	StageRetries     int
	FetchConcurrency int
}

// Result is everything one run produced. Stage N's slot is fully
// materialized before stage N+1 starts.
type Result struct {
	Query          string             `json:"query"`
	Sources        []search.Result    `json:"sources"`
	Documents      []extract.Document `json:"documents"`
	Summary        summarize.Summary  `json:"summary"`
	Report         report.Report      `json:"report"`
	FailedFetches  int                `json:"failed_fetches"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
}

// Pipeline runs the four stages in strict order for one request.
type Pipeline struct {
	searcher   Searcher
	extractor  Extractor
	summarizer Summarizer
	renderer   Renderer
	cfg        Config
}

// New wires the four stages into a pipeline.
func New(s Searcher, e Extractor, sum Summarizer, r Renderer, cfg Config) *Pipeline {
	if cfg.StageRetries < 1 {
		cfg.StageRetries = 1
	}
	if cfg.FetchConcurrency < 1 {
		cfg.FetchConcurrency = 1
	}
	return &Pipeline{
		searcher:   s,
		extractor:  e,
		summarizer: sum,
		renderer:   r,
		cfg:        cfg,
	}
}

// Run executes search, extraction, summarization, and rendering for one
// query. Per-URL extraction failures degrade to empty documents; any
// other stage failure aborts the run with an error naming the stage.
func (p *Pipeline) Run(ctx context.Context, query string, maxResults int, obs Observer) (*Result, error) {
	if obs == nil {
		obs = func(Stage, Status, string) {}
	}
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search stage: query must not be empty")
	}

	start := time.Now()
	result := &Result{Query: query}

	// Stage 1: search
	obs(StageSearch, StatusStarted, query)
	err := p.withRetry(ctx, func() error {
		sctx, cancel := context.WithTimeout(ctx, p.cfg.SearchTimeout)
		defer cancel()
		sources, err := p.searcher.Search(sctx, query, maxResults)
		if err != nil {
			return err
		}
		result.Sources = sources
		return nil
	})
	if err != nil {
		obs(StageSearch, StatusFailed, err.Error())
		return nil, fmt.Errorf("search stage: %w", err)
	}
	obs(StageSearch, StatusFinished, fmt.Sprintf("%d results", len(result.Sources)))

	// Stage 2: extract, one call per result URL. Calls are independent,
	// so they run concurrently with a bounded group; document order
	// matches source order and failures never abort the run.
	obs(StageExtract, StatusStarted, fmt.Sprintf("%d urls", len(result.Sources)))
	result.Documents = make([]extract.Document, len(result.Sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.FetchConcurrency)
	for i, src := range result.Sources {
		i, src := i, src
		g.Go(func() error {
			ectx, cancel := context.WithTimeout(gctx, p.cfg.FetchTimeout)
			defer cancel()
			doc, err := p.extractor.Extract(ectx, src.URL)
			if err != nil {
				log.Printf("[Pipeline] extraction failed for %s: %v", src.URL, err)
				obs(StageExtract, StatusDegraded, fmt.Sprintf("%s: %v", src.URL, err))
				result.Documents[i] = extract.Document{URL: src.URL}
				return nil
			}
			result.Documents[i] = doc
			return nil
		})
	}
	_ = g.Wait()
	for _, d := range result.Documents {
		if d.Empty() {
			result.FailedFetches++
		}
	}
	obs(StageExtract, StatusFinished,
		fmt.Sprintf("%d/%d documents extracted", len(result.Documents)-result.FailedFetches, len(result.Documents)))

	// Stage 3: summarize
	obs(StageSummarize, StatusStarted, "")
	err = p.withRetry(ctx, func() error {
		lctx, cancel := context.WithTimeout(ctx, p.cfg.LLMTimeout)
		defer cancel()
		summary, err := p.summarizer.Summarize(lctx, query, result.Documents)
		if err != nil {
			return err
		}
		result.Summary = summary
		return nil
	})
	if err != nil {
		obs(StageSummarize, StatusFailed, err.Error())
		return nil, fmt.Errorf("summarize stage: %w", err)
	}
	obs(StageSummarize, StatusFinished, fmt.Sprintf("%d key points", len(result.Summary.KeyPoints)))

	// Stage 4: render. Purely local, no retry.
	obs(StageRender, StatusStarted, "")
	rep, err := p.renderer.Render(result.Summary)
	if err != nil {
		obs(StageRender, StatusFailed, err.Error())
		return nil, fmt.Errorf("render stage: %w", err)
	}
	result.Report = rep
	obs(StageRender, StatusFinished, fmt.Sprintf("%d bytes", len(rep.PDF)))

	result.ElapsedSeconds = time.Since(start).Seconds()
	return result, nil
}

// withRetry runs fn up to StageRetries times with exponential backoff
// (500ms, 1s, 2s, ...). The default of one attempt means no retry.
// Deterministic failures stop immediately.
func (p *Pipeline) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.cfg.StageRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !retryable(err) || attempt == p.cfg.StageRetries {
			break
		}
		delay := 500 * time.Millisecond << (attempt - 1)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
	}
	return err
}

// retryable reports whether another identical attempt could succeed.
// An empty corpus or an unusable reply will not improve on a rerun.
func retryable(err error) bool {
	return !errors.Is(err, summarize.ErrInsufficientData) &&
		!errors.Is(err, summarize.ErrMalformedResponse)
}
