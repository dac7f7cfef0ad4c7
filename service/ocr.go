package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
)

var (
	// ErrOCRFailed is returned when the recognition service reports a
	// failed analysis (as opposed to never finishing).
	ErrOCRFailed = errors.New("ocr processing failed")
	// ErrOCRTimeout is returned when the polling budget is exhausted
	// without a terminal status.
	ErrOCRTimeout = errors.New("ocr timed out waiting for result")
)

const readAnalyzePath = "/vision/v3.2/read/analyze"

// OCRClient recognizes printed text through the Azure Read API: submit the
// image, then poll the returned operation until it succeeds or fails.
// Byte-identical images are served from an in-memory cache keyed by content
// hash, so re-submitting the same scan skips the round trip entirely.
type OCRClient struct {
	endpoint     string
	key          string
	httpClient   *http.Client
	pollInterval time.Duration
	maxAttempts  uint

	mu        sync.Mutex
	cache     map[string]string
	cacheSize int
}

type OCRConfig struct {
	Endpoint     string
	Key          string
	PollInterval time.Duration
	MaxAttempts  uint
	CacheSize    int
	HTTPClient   *http.Client
}

func NewOCRClient(cfg OCRConfig) (*OCRClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("AZURE_ENDPOINT is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 128
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OCRClient{
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		key:          cfg.Key,
		httpClient:   cfg.HTTPClient,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxAttempts,
		cache:        make(map[string]string),
		cacheSize:    cfg.CacheSize,
	}, nil
}

// readResult is the subset of the Read API operation document we consume.
type readResult struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		ReadResults []struct {
			Lines []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
}

// Recognize returns the recognized text of the image, lines joined by
// newlines in the order the service reports them.
func (c *OCRClient) Recognize(ctx context.Context, image []byte) (string, error) {
	sum := sha256.Sum256(image)
	hash := hex.EncodeToString(sum[:])
	if text, ok := c.cached(hash); ok {
		log.Debug().Str("hash", hash[:12]).Msg("ocr cache hit")
		return text, nil
	}

	opLocation, err := c.submit(ctx, image)
	if err != nil {
		return "", err
	}

	text, err := c.poll(ctx, opLocation)
	if err != nil {
		return "", err
	}

	c.store(hash, text)
	return text, nil
}

func (c *OCRClient) submit(ctx context.Context, image []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+readAnalyzePath, bytes.NewReader(image))
	if err != nil {
		return "", err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("submit image: recognition service returned %d", resp.StatusCode)
	}
	opLocation := resp.Header.Get("Operation-Location")
	if opLocation == "" {
		return "", fmt.Errorf("submit image: missing Operation-Location header")
	}
	return opLocation, nil
}

// errStillRunning marks a poll that must be retried.
var errStillRunning = errors.New("ocr operation still running")

func (c *OCRClient) poll(ctx context.Context, opLocation string) (string, error) {
	var text string
	err := retry.Do(
		func() error {
			result, err := c.fetchResult(ctx, opLocation)
			if err != nil {
				return err
			}
			switch result.Status {
			case "succeeded":
				text = flattenLines(result)
				return nil
			case "failed":
				return retry.Unrecoverable(ErrOCRFailed)
			default: // notStarted, running
				return errStillRunning
			}
		},
		retry.Context(ctx),
		retry.Attempts(c.maxAttempts),
		retry.Delay(c.pollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if errors.Is(err, ErrOCRFailed) {
			return "", ErrOCRFailed
		}
		if errors.Is(err, errStillRunning) {
			return "", ErrOCRTimeout
		}
		return "", err
	}
	return text, nil
}

func (c *OCRClient) fetchResult(ctx context.Context, opLocation string) (*readResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opLocation, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll result: recognition service returned %d", resp.StatusCode)
	}
	var result readResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("poll result: %w", err)
	}
	return &result, nil
}

// flattenLines joins every recognized line in service order, which the Read
// API reports top to bottom.
func flattenLines(result *readResult) string {
	var lines []string
	for _, page := range result.AnalyzeResult.ReadResults {
		for _, line := range page.Lines {
			lines = append(lines, line.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func (c *OCRClient) cached(hash string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.cache[hash]
	return text, ok
}

func (c *OCRClient) store(hash, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cache) >= c.cacheSize {
		// Evict an arbitrary entry to keep the cache bounded.
		for k := range c.cache {
			delete(c.cache, k)
			break
		}
	}
	c.cache[hash] = text
}
