package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultHTTPTimeout = 10 * time.Minute

// Config captures the runtime settings for the speech-to-text service.
type Config struct {
	BaseURL        string
	APIKey         string
	Model          string
	Language       string
	TimeoutSeconds int
}

// Segment is one timed span of transcribed speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result contains a completed transcription.
type Result struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// Client talks to the transcription HTTP service.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a transcription client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimSpace(strings.TrimSuffix(cfg.BaseURL, "/")),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			Model:          strings.TrimSpace(cfg.Model),
			Language:       strings.TrimSpace(cfg.Language),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// Transcribe uploads an audio file and returns the transcription. onSegment,
// when non-nil, is invoked for each returned segment in order so callers can
// stream text as it is consumed.
func (c *Client) Transcribe(ctx context.Context, audioPath string, onSegment func(Segment)) (Result, error) {
	var result Result
	if c.cfg.BaseURL == "" {
		return result, errors.New("transcribe: base url required")
	}
	if audioPath == "" {
		return result, errors.New("transcribe: audio path required")
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return result, fmt.Errorf("transcribe: open audio: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		err := writeTranscribeForm(form, file, filepath.Base(audioPath), c.cfg)
		if closeErr := form.Close(); err == nil {
			err = closeErr
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/transcribe", pr)
	if err != nil {
		return result, fmt.Errorf("transcribe: new request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("transcribe: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("transcribe: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("transcribe: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return result, fmt.Errorf("transcribe: decode response: %w", err)
	}

	if result.Text == "" && len(result.Segments) > 0 {
		parts := make([]string, 0, len(result.Segments))
		for _, seg := range result.Segments {
			parts = append(parts, strings.TrimSpace(seg.Text))
		}
		result.Text = strings.Join(parts, " ")
	}
	if onSegment != nil {
		for _, seg := range result.Segments {
			onSegment(seg)
		}
	}
	return result, nil
}

// HealthCheck verifies the transcription service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.BaseURL == "" {
		return errors.New("transcriber health: base url required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("transcriber health: new request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transcriber health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transcriber health: http %d", resp.StatusCode)
	}
	return nil
}

func writeTranscribeForm(form *multipart.Writer, file io.Reader, filename string, cfg Config) error {
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("transcribe: create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("transcribe: copy audio: %w", err)
	}
	if cfg.Model != "" {
		if err := form.WriteField("model", cfg.Model); err != nil {
			return fmt.Errorf("transcribe: write model field: %w", err)
		}
	}
	if cfg.Language != "" {
		if err := form.WriteField("language", cfg.Language); err != nil {
			return fmt.Errorf("transcribe: write language field: %w", err)
		}
	}
	return nil
}
