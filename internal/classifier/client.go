// Package classifier talks to an Ollama backend to classify notes into
// categories, with a deterministic keyword fallback for when the backend is
// unreachable or returns an unusable reply.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

// Config holds backend connection settings.
type Config struct {
	BaseURL      string
	Model        string
	Timeout      time.Duration // main classify call
	ProbeTimeout time.Duration // availability probe
}

// Client is an HTTP client for the Ollama generate API.
type Client struct {
	cfg    Config
	httpc  *http.Client
	logger *slog.Logger
}

// NewClient creates a backend client. The zero timeouts default to 30s for
// classification and 5s for the probe.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:    cfg,
		httpc:  &http.Client{},
		logger: logger,
	}
}

// IsAvailable probes the backend's model listing endpoint with a short
// timeout. Used to decide whether to attempt the main classify call at all.
func (c *Client) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("classifier: backend not available", slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// resultSchema is the structured-output format sent with each generate
// request so the model replies with a single JSON object.
var resultSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"class": {"type": "string"},
		"confidence": {"type": "number"},
		"suggested_filename": {"type": "string"}
	},
	"required": ["class", "confidence", "suggested_filename"]
}`)

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Format  json.RawMessage `json:"format,omitempty"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Classify sends the note and the known category list to the backend and
// parses the structured reply. Any transport or parse problem is reported as
// apperr.ErrUnavailable so the caller can fall back; Classify never panics
// on malformed backend output.
func (c *Client) Classify(ctx context.Context, text string, known []string) (models.ClassificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(generateRequest{
		Model:  c.cfg.Model,
		Prompt: BuildPrompt(text, known),
		Stream: false,
		Format: resultSchema,
		Options: generateOptions{
			Temperature: 0.3,
			TopP:        0.9,
			NumPredict:  200,
		},
	})
	if err != nil {
		return models.ClassificationResult{}, fmt.Errorf("classifier: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return models.ClassificationResult{}, fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.logger.Warn("classifier: request failed", slog.String("error", err.Error()))
		return models.ClassificationResult{}, apperr.ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("classifier: unexpected status", slog.Int("status", resp.StatusCode))
		return models.ClassificationResult{}, apperr.ErrUnavailable
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		c.logger.Warn("classifier: decode response", slog.String("error", err.Error()))
		return models.ClassificationResult{}, apperr.ErrUnavailable
	}

	res, err := c.parseReply(gr.Response, known)
	if err != nil {
		c.logger.Warn("classifier: unusable reply",
			slog.String("error", err.Error()),
			slog.String("reply", gr.Response))
		return models.ClassificationResult{}, apperr.ErrUnavailable
	}
	return res, nil
}

// parseReply locates the first {...} span in the raw reply (models sometimes
// wrap the JSON in prose even with structured output requested) and decodes
// it, requiring the class, confidence, and suggested_filename fields.
func (c *Client) parseReply(reply string, known []string) (models.ClassificationResult, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return models.ClassificationResult{}, fmt.Errorf("no JSON object in reply")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &fields); err != nil {
		return models.ClassificationResult{}, fmt.Errorf("parse JSON: %w", err)
	}

	category, ok := fields["class"].(string)
	if !ok {
		return models.ClassificationResult{}, fmt.Errorf("missing field %q", "class")
	}
	confidence, ok := fields["confidence"].(float64)
	if !ok {
		return models.ClassificationResult{}, fmt.Errorf("missing field %q", "confidence")
	}
	suggested, ok := fields["suggested_filename"].(string)
	if !ok {
		return models.ClassificationResult{}, fmt.Errorf("missing field %q", "suggested_filename")
	}

	if confidence < 0 || confidence > 1 {
		c.logger.Warn("classifier: confidence out of range, clamping",
			slog.Float64("confidence", confidence))
		confidence = models.ClampConfidence(confidence)
	}

	category = strings.ToLower(strings.TrimSpace(category))
	return models.ClassificationResult{
		Category:          category,
		Confidence:        confidence,
		SuggestedFilename: strings.TrimSpace(suggested),
		IsNewCategory:     !models.ContainsFold(known, category),
		Raw:               reply,
	}, nil
}

// ClassifyOrFallback probes the backend, classifies when it is reachable,
// and falls back to the keyword classifier on any soft failure. It never
// returns an error: every note gets some classification.
func (c *Client) ClassifyOrFallback(ctx context.Context, text string, known []string) models.ClassificationResult {
	if !c.IsAvailable(ctx) {
		return Fallback(text)
	}
	res, err := c.Classify(ctx, text, known)
	if err != nil {
		return Fallback(text)
	}
	return res
}
