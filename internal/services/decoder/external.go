package decoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultExternalBaseURL = "https://api.clipforge-backend.example/v1"
	defaultExternalTimeout = 60 * time.Second
)

// ExternalConfig configures the hosted decoder fallback (spec.md §4.B's
// "external-backend fallback" pass).
type ExternalConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// ExternalClient submits individual low-confidence segments to a hosted
// decoder, grounded on the teacher's opensubtitles REST client idiom.
type ExternalClient struct {
	apiKey  string
	baseURL *url.URL
	http    *http.Client
}

// NewExternalClient builds an ExternalClient. Returns an error if no API
// key is configured, since the pass is skipped entirely without one.
func NewExternalClient(cfg ExternalConfig) (*ExternalClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("decoder: external backend requires an api key")
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultExternalBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("decoder: parse external base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultExternalTimeout}
	}
	return &ExternalClient{apiKey: apiKey, baseURL: baseURL, http: client}, nil
}

type transcribeRequest struct {
	AudioURL string  `json:"audio_url,omitempty"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Language string  `json:"language,omitempty"`
}

type transcribeResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// TranscribeSegment submits one audio window to the hosted decoder and
// returns its result, including the confidence the backend reports.
func (c *ExternalClient) TranscribeSegment(ctx context.Context, audioPath string, start, end float64, language string) (Segment, error) {
	if c == nil {
		return Segment{}, errors.New("decoder: external client is nil")
	}

	payload, err := json.Marshal(transcribeRequest{AudioURL: audioPath, Start: start, End: end, Language: language})
	if err != nil {
		return Segment{}, fmt.Errorf("decoder: encode external request: %w", err)
	}

	endpoint := c.baseURL.JoinPath("transcribe")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(payload))
	if err != nil {
		return Segment{}, fmt.Errorf("decoder: build external request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Segment{}, fmt.Errorf("decoder: external request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Segment{}, fmt.Errorf("decoder: external backend error (%s): %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var out transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Segment{}, fmt.Errorf("decoder: decode external response: %w", err)
	}

	confidence := out.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Segment{Start: start, End: end, Text: out.Text, Confidence: confidence}, nil
}
