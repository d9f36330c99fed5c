package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds scraper configuration.
type Config struct {
	StartURL           string
	AllowedDomain      string
	SecondPageURL      string
	PageURLTemplate    string // must contain a single %d for the item offset
	OffsetBase         int
	OffsetStep         int
	MaxPages           int
	Parallelism        int
	Delay              time.Duration
	RandomDelay        time.Duration
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
	RetryBackoffMax    time.Duration
	RetryCacheSize     int
	PipelineBufferSize int
	BatchSize          int
	OutputFile         string
	OutputFormat       string // csv, json, dual, or postgres
	DatabaseURL        string
	DatabaseTable      string
	MetricsAddr        string
	UserAgent          string
	Verbose            bool
	RespectRobotsTxt   bool
}

// DefaultConfig returns the settings for the notebook listing on Mercado Livre.
func DefaultConfig() *Config {
	return &Config{
		StartURL:           "https://lista.mercadolivre.com.br/notebook?sb=rb#D[A:notebook]",
		AllowedDomain:      "lista.mercadolivre.com.br",
		SecondPageURL:      "https://lista.mercadolivre.com.br/informatica/portateis-acessorios/notebooks/notebook_Desde_49_NoIndex_True",
		PageURLTemplate:    "https://lista.mercadolivre.com.br/informatica/portateis-acessorios/notebooks/notebook_Desde_%d_NoIndex_True",
		OffsetBase:         49,
		OffsetStep:         48,
		MaxPages:           10,
		Parallelism:        1,
		Delay:              0,
		RandomDelay:        0,
		Timeout:            15 * time.Second,
		MaxRetries:         2,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		RetryCacheSize:     1024,
		PipelineBufferSize: 256,
		BatchSize:          48,
		OutputFile:         "output/notebooks.csv",
		OutputFormat:       "csv",
		DatabaseTable:      "products",
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:            false,
		RespectRobotsTxt:   false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return fmt.Errorf("start URL cannot be empty")
	}
	parsedURL, err := url.Parse(c.StartURL)
	if err != nil {
		return fmt.Errorf("invalid start URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("start URL must include a host")
	}
	if c.AllowedDomain == "" {
		return fmt.Errorf("allowed domain cannot be empty")
	}
	if parsedURL.Hostname() != c.AllowedDomain {
		return fmt.Errorf("start URL host %q is outside allowed domain %q", parsedURL.Hostname(), c.AllowedDomain)
	}
	if c.SecondPageURL == "" {
		return fmt.Errorf("second page URL cannot be empty")
	}
	if strings.Count(c.PageURLTemplate, "%d") != 1 {
		return fmt.Errorf("page URL template must contain exactly one %%d")
	}
	if c.OffsetBase < 0 {
		return fmt.Errorf("offset base cannot be negative")
	}
	if c.OffsetStep <= 0 {
		return fmt.Errorf("offset step must be positive")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.RetryCacheSize <= 0 {
		return fmt.Errorf("retry cache size must be positive")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}

	switch c.OutputFormat {
	case "csv", "json", "dual":
		if c.OutputFile == "" {
			return fmt.Errorf("output file cannot be empty")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("database URL is required for postgres output")
		}
		if c.DatabaseTable == "" {
			return fmt.Errorf("database table cannot be empty")
		}
	default:
		return fmt.Errorf("output format must be csv, json, dual, or postgres")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
