package main

import (
	"fmt"
	"os"
	"time"

	"go-research/internal/api"
	"go-research/internal/config"
	"go-research/internal/extract"
	"go-research/internal/jobs"
	"go-research/internal/llm"
	"go-research/internal/pipeline"
	"go-research/internal/report"
	"go-research/internal/search"
	"go-research/internal/summarize"
)

func main() {
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	searcher := search.NewClient(
		cfg.Search.BaseURL,
		cfg.Search.APIKey,
		cfg.Search.Engine,
		time.Duration(cfg.Pipeline.SearchTimeoutSec)*time.Second,
	)
	extractor := extract.NewExtractor(
		time.Duration(cfg.Pipeline.FetchTimeoutSec)*time.Second,
		"", // default user agent
		cfg.Pipeline.MaxDocChars,
		2,
	)
	llmClient := llm.NewClient(
		cfg.LLM.URL,
		cfg.LLM.Model,
		cfg.LLM.APIKey,
		cfg.LLM.MaxTokens,
		*cfg.LLM.Temperature,
		time.Duration(cfg.Pipeline.LLMTimeoutSec)*time.Second,
	)
	summarizer := summarize.New(llmClient)
	renderer := report.NewRenderer()

	p := pipeline.New(searcher, extractor, summarizer, renderer, pipeline.Config{
		SearchTimeout:    time.Duration(cfg.Pipeline.SearchTimeoutSec) * time.Second,
		FetchTimeout:     time.Duration(cfg.Pipeline.FetchTimeoutSec) * time.Second,
		LLMTimeout:       time.Duration(cfg.Pipeline.LLMTimeoutSec) * time.Second,
		StageRetries:     cfg.Pipeline.StageRetries,
		FetchConcurrency: cfg.Pipeline.FetchConcurrency,
	})
	store := jobs.NewStore(p)

	r := api.SetupRouter(cfg, p, store)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Starting server on %s\n", addr)
	if err := r.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
