package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-research/internal/extract"
	"go-research/internal/llm"
	"go-research/internal/report"
	"go-research/internal/search"
	"go-research/internal/summarize"
)

// End-to-end runs with real stage implementations against local test
// servers standing in for the search provider, the result pages, and
// the completion endpoint.

func articlePage(topic string) string {
	para := strings.Repeat(fmt.Sprintf("This paragraph discusses %s in useful detail. ", topic), 10)
	return fmt.Sprintf(`<html><head><title>%s</title></head><body>
		<h1>%s</h1><p>%s</p><p>%s</p></body></html>`, topic, topic, para, para)
}

func e2eFixture(t *testing.T, notFound map[string]bool) (*Pipeline, func()) {
	t.Helper()

	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if notFound[r.URL.Path] {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articlePage("quantum computing"+r.URL.Path))
	}))

	serp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"organic_results": [
			{"title": "A", "link": "%s/a", "snippet": "sa"},
			{"title": "B", "link": "%s/b", "snippet": "sb"},
			{"title": "C", "link": "%s/c", "snippet": "sc"}
		]}`, pages.URL, pages.URL, pages.URL)
	}))

	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content":
				"{\"title\": \"Quantum Computing Basics\", \"key_points\": [\"Qubits hold superpositions\"], \"narrative\": \"A short narrative.\"}"}}],
			"usage": {"completion_tokens": 30}
		}`))
	}))

	searcher := search.NewClient(serp.URL, "test-key", "google", 5*time.Second)
	extractor := extract.NewExtractor(5*time.Second, "", 8000, 2)
	summarizer := summarize.New(llm.NewClient(llmSrv.URL, "test-model", "key", 500, 0.2, 5*time.Second))
	renderer := report.NewRenderer()

	p := New(searcher, extractor, summarizer, renderer, Config{
		SearchTimeout:    5 * time.Second,
		FetchTimeout:     5 * time.Second,
		LLMTimeout:       5 * time.Second,
		StageRetries:     1,
		FetchConcurrency: 2,
	})

	cleanup := func() {
		pages.Close()
		serp.Close()
		llmSrv.Close()
	}
	return p, cleanup
}

func TestEndToEnd_AllSourcesExtracted(t *testing.T) {
	p, cleanup := e2eFixture(t, nil)
	defer cleanup()

	result, err := p.Run(context.Background(), "quantum computing basics", 3, nil)
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	if len(result.Documents) != 3 {
		t.Fatalf("expected 3 documents, got %d", len(result.Documents))
	}
	for i, d := range result.Documents {
		if d.Empty() {
			t.Errorf("document %d is empty", i)
		}
	}
	if len(result.Summary.KeyPoints) < 1 {
		t.Error("expected at least one key point")
	}
	if !bytes.HasPrefix(result.Report.PDF, []byte("%PDF-")) {
		t.Error("expected report to start with PDF signature")
	}
}

func TestEndToEnd_OneSourceMissing(t *testing.T) {
	p, cleanup := e2eFixture(t, map[string]bool{"/b": true})
	defer cleanup()

	result, err := p.Run(context.Background(), "quantum computing basics", 3, nil)
	if err != nil {
		t.Fatalf("pipeline should survive one 404, got: %v", err)
	}
	if result.FailedFetches != 1 {
		t.Errorf("expected 1 failed fetch, got %d", result.FailedFetches)
	}
	nonEmpty := 0
	for _, d := range result.Documents {
		if !d.Empty() {
			nonEmpty++
		}
	}
	if nonEmpty != 2 {
		t.Errorf("expected 2 extracted documents, got %d", nonEmpty)
	}
	if len(result.Report.PDF) == 0 {
		t.Error("expected report despite the missing source")
	}
}

func TestEndToEnd_AllSourcesMissing(t *testing.T) {
	p, cleanup := e2eFixture(t, map[string]bool{"/a": true, "/b": true, "/c": true})
	defer cleanup()

	_, err := p.Run(context.Background(), "quantum computing basics", 3, nil)
	if !errors.Is(err, summarize.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData when nothing extracts, got %v", err)
	}
}
