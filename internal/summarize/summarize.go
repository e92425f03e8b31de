package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go-research/internal/extract"
	"go-research/internal/llm"
)

var (
	// ErrInsufficientData is returned when no document carries usable text.
	ErrInsufficientData = errors.New("no extracted data to summarize")
	// ErrMalformedResponse is returned when the model reply cannot be
	// parsed into a summary.
	ErrMalformedResponse = errors.New("malformed llm response")
)

// Summary is the structured result of a research run.
type Summary struct {
	Title     string   `json:"title"`
	KeyPoints []string `json:"key_points"`
	Narrative string   `json:"narrative"`
}

// Completer abstracts the LLM client so handlers and tests can stub it.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (llm.Response, error)
}

// Summarizer turns extracted documents into a Summary via one LLM call.
type Summarizer struct {
	llm Completer
}

// New creates a Summarizer backed by the given completion client.
func New(c Completer) *Summarizer {
	return &Summarizer{llm: c}
}

// Summarize builds a single prompt from the query and all non-empty
// documents and parses the model reply into a Summary. All documents
// empty is a hard failure: the caller gets ErrInsufficientData rather
// than a fabricated summary.
func (s *Summarizer) Summarize(ctx context.Context, query string, docs []extract.Document) (Summary, error) {
	prompt, sources := buildPrompt(query, docs)
	if sources == 0 {
		return Summary{}, ErrInsufficientData
	}

	resp, err := s.llm.Complete(ctx, []llm.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return Summary{}, err
	}

	summary, err := parseSummary(resp.Reply)
	if err != nil {
		return Summary{}, err
	}
	if summary.Title == "" {
		summary.Title = "Research summary: " + query
	}
	return summary, nil
}

// buildPrompt numbers each non-empty document as a source excerpt and
// returns the prompt plus how many sources it contains.
func buildPrompt(query string, docs []extract.Document) (string, int) {
	var b strings.Builder
	sources := 0
	for _, d := range docs {
		if d.Empty() {
			continue
		}
		sources++
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", sources, d.URL, d.Text)
	}
	if sources == 0 {
		return "", 0
	}

	var p strings.Builder
	p.WriteString("You are a research assistant. Using only the numbered source excerpts below, ")
	p.WriteString("answer the research query.\n\n")
	fmt.Fprintf(&p, "Research query: %s\n\nSources:\n\n%s", query, b.String())
	p.WriteString("Respond with a single JSON object and nothing else, in this exact shape:\n")
	p.WriteString(`{"title": "...", "key_points": ["...", "..."], "narrative": "..."}` + "\n")
	p.WriteString("key_points must contain the most important findings as short bullet statements. ")
	p.WriteString("narrative must be a short paragraph tying them together.")
	return p.String(), sources
}

// parseSummary accepts a strict JSON reply, tolerating markdown code
// fences, and falls back to bullet-point heuristics for models that
// answer in plain text.
func parseSummary(reply string) (Summary, error) {
	cleaned := stripCodeFences(reply)
	if cleaned == "" {
		return Summary{}, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}

	var summary Summary
	if err := json.Unmarshal([]byte(cleaned), &summary); err == nil {
		if len(summary.KeyPoints) > 0 || summary.Narrative != "" {
			return summary, nil
		}
	}

	// Some models ignore the JSON instruction and reply with bullets.
	if summary, ok := parseBullets(cleaned); ok {
		return summary, nil
	}

	return Summary{}, fmt.Errorf("%w: could not parse reply into summary", ErrMalformedResponse)
}

func stripCodeFences(reply string) string {
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "```") {
		reply = strings.TrimPrefix(reply, "```json")
		reply = strings.TrimPrefix(reply, "```")
		reply = strings.TrimSuffix(strings.TrimSpace(reply), "```")
	}
	return strings.TrimSpace(reply)
}

func parseBullets(reply string) (Summary, bool) {
	var summary Summary
	var narrative []string

	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if bullet := trimBulletMarker(line); bullet != "" {
			summary.KeyPoints = append(summary.KeyPoints, bullet)
			continue
		}
		if summary.Title == "" && len(summary.KeyPoints) == 0 {
			summary.Title = strings.TrimSuffix(line, ":")
			continue
		}
		narrative = append(narrative, line)
	}

	if len(summary.KeyPoints) == 0 {
		return Summary{}, false
	}
	summary.Narrative = strings.Join(narrative, " ")
	return summary, true
}

func trimBulletMarker(line string) string {
	for _, marker := range []string{"- ", "* ", "• "} {
		if strings.HasPrefix(line, marker) {
			return strings.TrimSpace(strings.TrimPrefix(line, marker))
		}
	}
	return ""
}
