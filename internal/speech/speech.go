// Package speech turns script text into narration audio through the
// ElevenLabs text-to-speech API.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"avatarpipe/internal/pkg/errors"
	"avatarpipe/internal/pkg/logger"
)

const (
	DefaultBaseURL       = "https://api.elevenlabs.io"
	DefaultModel         = "eleven_v3"
	DefaultFallbackModel = "eleven_multilingual_v2"

	maxErrorBody = 2048
)

var markupPattern = regexp.MustCompile(`\[[\w\s]+\]\s*`)

// StripMarkup removes bracketed delivery cues such as "[excited] " that only
// the primary model understands.
func StripMarkup(text string) string {
	return markupPattern.ReplaceAllString(text, "")
}

// HasMarkup reports whether text carries any bracketed delivery cue.
func HasMarkup(text string) bool {
	return markupPattern.MatchString(text)
}

// VoiceSettings tunes delivery. Higher stability is more consistent, lower is
// more expressive.
type VoiceSettings struct {
	Stability       float64 `json:"stability" toml:"stability"`
	SimilarityBoost float64 `json:"similarity_boost" toml:"similarity_boost"`
}

var (
	// Stable is the consistent delivery preset used for Option A.
	Stable = VoiceSettings{Stability: 0.7, SimilarityBoost: 0.8}
	// Expressive is the dynamic delivery preset used for Option B.
	Expressive = VoiceSettings{Stability: 0.3, SimilarityBoost: 0.9}
)

// Config holds credentials and model selection.
type Config struct {
	APIKey        string
	VoiceID       string
	Model         string
	FallbackModel string
	BaseURL       string
	Timeout       time.Duration
}

// Output describes one synthesized audio file.
type Output struct {
	Path     string
	Model    string
	Settings VoiceSettings
	// Stripped is set when delivery markup was removed for the fallback model.
	Stripped bool
}

// Client calls the synthesis API.
type Client struct {
	cfg    Config
	client *http.Client
	log    *logger.Logger
}

// NewClient creates a synthesis client. Missing models and base URL fall back
// to the package defaults.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = DefaultFallbackModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.WithComponent("speech"),
	}
}

type request struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings VoiceSettings `json:"voice_settings"`
}

// Synthesize writes narration for text to outPath. A non-success response
// from the primary model is retried once against the fallback model with
// markup stripped; transport errors are returned as-is.
func (c *Client) Synthesize(ctx context.Context, text, outPath string, settings VoiceSettings) (Output, error) {
	const op = "speech.synthesize"

	if strings.TrimSpace(text) == "" {
		return Output{}, errors.ValidationField("text", "text must not be empty").WithOp(op)
	}
	if c.cfg.APIKey == "" {
		return Output{}, errors.MissingConfig("ELEVENLABS_API_KEY").WithOp(op)
	}
	if c.cfg.VoiceID == "" {
		return Output{}, errors.MissingConfig("ELEVENLABS_VOICE_ID").WithOp(op)
	}

	log := c.log.FromContext(ctx)
	if HasMarkup(text) {
		log.Info("delivery markup detected in script")
	}

	out := Output{Path: outPath, Model: c.cfg.Model, Settings: settings}
	log.Info("generating audio",
		"chars", len([]rune(text)),
		"model", out.Model,
		"stability", settings.Stability,
		"similarity", settings.SimilarityBoost,
	)

	audio, status, body, err := c.post(ctx, request{Text: text, ModelID: out.Model, VoiceSettings: settings})
	if err != nil {
		return Output{}, err
	}

	if status != http.StatusOK && c.cfg.Model != c.cfg.FallbackModel {
		log.Warn("primary model unavailable, falling back",
			"model", c.cfg.Model,
			"fallback", c.cfg.FallbackModel,
			"status", status,
		)
		if HasMarkup(text) {
			text = StripMarkup(text)
			out.Stripped = true
			log.Info("delivery markup removed for fallback model")
		}
		out.Model = c.cfg.FallbackModel
		audio, status, body, err = c.post(ctx, request{Text: text, ModelID: out.Model, VoiceSettings: settings})
		if err != nil {
			return Output{}, err
		}
	}

	if status != http.StatusOK {
		return Output{}, errors.Vendor(errors.CodeSynthesis, "elevenlabs", status, body).
			WithOp(op).
			WithField("model", out.Model)
	}

	if err := writeFile(outPath, audio); err != nil {
		return Output{}, errors.Wrap(err, op, "save audio")
	}

	log.Info("audio saved", "path", outPath, "bytes", len(audio))
	return out, nil
}

// post returns the audio bytes on 200, or the status and a truncated body.
func (c *Client) post(ctx context.Context, payload request) ([]byte, int, string, error) {
	const op = "speech.request"

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, "", errors.Wrap(err, op, "encode request")
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", c.cfg.BaseURL, c.cfg.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, "", errors.Wrap(err, op, "build request")
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	res, err := c.client.Do(req)
	if err != nil {
		return nil, 0, "", errors.WrapWithCode(err, errors.CodeNetwork, op, "synthesis request failed")
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return nil, res.StatusCode, string(body), nil
	}

	audio, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, 0, "", errors.WrapWithCode(err, errors.CodeNetwork, op, "read audio")
	}
	return audio, res.StatusCode, "", nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
