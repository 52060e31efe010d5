package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// apiClient is a thin HTTP client for clipperd's API surface (spec.md §6),
// grounded on the teacher's ipc.Client request/response wrapper but built
// over net/http + encoding/json instead of a unix-socket protocol, since
// clipforge's daemon speaks HTTP rather than the teacher's IPC framing.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultClientTimeout},
	}
}

type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("clipperd responded %d: %s", e.StatusCode, e.Message)
}

func (c *apiClient) do(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect to clipperd at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var envelope struct {
			Error string `json:"error"`
		}
		body, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(body, &envelope)
		msg := envelope.Error
		if msg == "" {
			msg = string(body)
		}
		return &apiError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) upload(path string) (uploadResult, error) {
	var result uploadResult

	file, err := os.Open(path)
	if err != nil {
		return result, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return result, err
	}
	if _, err := io.Copy(fw, file); err != nil {
		return result, err
	}
	if err := mw.Close(); err != nil {
		return result, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return result, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	err = c.do(req, &result)
	return result, err
}

func (c *apiClient) fetch(videoURL, quality string) (fetchResult, error) {
	var result fetchResult
	payload, err := json.Marshal(map[string]string{"url": videoURL, "quality": quality})
	if err != nil {
		return result, err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/fetch", bytes.NewReader(payload))
	if err != nil {
		return result, err
	}
	req.Header.Set("Content-Type", "application/json")
	err = c.do(req, &result)
	return result, err
}

func (c *apiClient) process(req processArgs) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/process", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	var out struct {
		JobID string `json:"job_id"`
	}
	if err := c.do(httpReq, &out); err != nil {
		return "", err
	}
	return out.JobID, nil
}

func (c *apiClient) status(jobID string) (statusResult, error) {
	var result statusResult
	req, err := http.NewRequest(http.MethodGet, c.baseURL+"/status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return result, err
	}
	err = c.do(req, &result)
	return result, err
}

func (c *apiClient) cancel(jobID string) error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/cancel/"+url.PathEscape(jobID), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *apiClient) cleanup(jobID string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/cleanup/"+url.PathEscape(jobID), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *apiClient) listJobs(status string) ([]jobSummary, error) {
	reqURL := c.baseURL + "/jobs"
	if status != "" {
		reqURL += "?status=" + url.QueryEscape(status)
	}
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Jobs []jobSummary `json:"jobs"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

type uploadResult struct {
	SourceID string  `json:"source_id"`
	Duration float64 `json:"duration"`
	Size     int64   `json:"size"`
	Title    string  `json:"title"`
}

type fetchResult struct {
	SourceID string  `json:"source_id"`
	Duration float64 `json:"duration"`
	Title    string  `json:"title"`
}

type processArgs struct {
	SourceID       string `json:"source_id"`
	Language       string `json:"language,omitempty"`
	TargetDuration string `json:"target_duration,omitempty"`
	Style          string `json:"style,omitempty"`
	UseHook        bool   `json:"use_hook"`
	AutoCaption    bool   `json:"auto_caption"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
}

type clipResult struct {
	Index           int     `json:"index"`
	File            string  `json:"file"`
	StartSeconds    float64 `json:"start_seconds"`
	EndSeconds      float64 `json:"end_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	ViralScore      float64 `json:"viral_score"`
	ViralTier       string  `json:"viral_tier"`
	Category        string  `json:"category"`
}

type statusResult struct {
	Status   string       `json:"status"`
	Progress float64      `json:"progress"`
	Message  string       `json:"message"`
	Log      []string     `json:"log"`
	Clips    []clipResult `json:"clips"`
}

type jobSummary struct {
	JobID    string  `json:"job_id"`
	SourceID string  `json:"source_id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

const defaultClientTimeout = 15 * time.Minute
