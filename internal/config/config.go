package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

type SearchConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	Engine     string `json:"engine"`
	MaxResults int    `json:"max_results"`
}

type LLMConfig struct {
	URL       string `json:"url"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	MaxTokens int    `json:"max_tokens"`
	// Pointer so an explicit 0 (deterministic sampling) is
	// distinguishable from an absent field.
	Temperature *float64 `json:"temperature"`
}

type PipelineConfig struct {
	SearchTimeoutSec int `json:"search_timeout_s"`
	FetchTimeoutSec  int `json:"fetch_timeout_s"`
	LLMTimeoutSec    int `json:"llm_timeout_s"`
	MaxDocChars      int `json:"max_doc_chars"`
	StageRetries     int `json:"stage_retries"`
	FetchConcurrency int `json:"fetch_concurrency"`
}

type Config struct {
	Server struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`
	Search   SearchConfig   `json:"search"`
	LLM      LLMConfig      `json:"llm"`
	Pipeline PipelineConfig `json:"pipeline"`
}

var (
	once   sync.Once
	cfg    *Config
	cfgErr error
)

// LoadConfig reads config.json from disk (singleton)
func LoadConfig(path string) (*Config, error) {
	once.Do(func() {
		raw, err := os.ReadFile(path)
		if err != nil {
			cfgErr = fmt.Errorf("failed to read config file: %w", err)
			return
		}
		var c Config
		if err := json.Unmarshal(raw, &c); err != nil {
			cfgErr = fmt.Errorf("invalid config format: %w", err)
			return
		}
		// Minimal validation
		if c.Search.APIKey == "" {
			cfgErr = errors.New("search api_key must be set in config")
			return
		}
		if c.LLM.URL == "" {
			cfgErr = errors.New("llm url must be set in config")
			return
		}
		c.applyDefaults()
		cfg = &c
	})
	return cfg, cfgErr
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Search.BaseURL == "" {
		c.Search.BaseURL = "https://serpapi.com/search.json"
	}
	if c.Search.Engine == "" {
		c.Search.Engine = "google"
	}
	if c.Search.MaxResults <= 0 || c.Search.MaxResults > 10 {
		c.Search.MaxResults = 3
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama-3.3-70b-versatile"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 500
	}
	if c.LLM.Temperature == nil {
		t := 0.2
		c.LLM.Temperature = &t
	}
	if c.Pipeline.SearchTimeoutSec <= 0 {
		c.Pipeline.SearchTimeoutSec = 15
	}
	if c.Pipeline.FetchTimeoutSec <= 0 {
		c.Pipeline.FetchTimeoutSec = 15
	}
	if c.Pipeline.LLMTimeoutSec <= 0 {
		c.Pipeline.LLMTimeoutSec = 120
	}
	if c.Pipeline.MaxDocChars <= 0 {
		c.Pipeline.MaxDocChars = 8000
	}
	if c.Pipeline.StageRetries <= 0 {
		c.Pipeline.StageRetries = 1
	}
	if c.Pipeline.FetchConcurrency <= 0 {
		c.Pipeline.FetchConcurrency = 4
	}
}

// GetConfig returns the loaded config (must call LoadConfig first)
func GetConfig() *Config {
	return cfg
}

// ResetConfigForTest resets the singleton state (for testing only)
func ResetConfigForTest() {
	once = sync.Once{}
	cfg = nil
	cfgErr = nil
}
