package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientStatusDecodesJobFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status/job-1" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(statusResult{
			Status: "running", Progress: 42, Message: "transcribing",
			Clips: []clipResult{{Index: 1, File: "clip_001.mp4"}},
		})
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL, "")
	result, err := client.status("job-1")
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	if result.Status != "running" || result.Progress != 42 || len(result.Clips) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"job_id": "job-1"})
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL, "secret")
	if _, err := client.process(processArgs{SourceID: "src-1"}); err != nil {
		t.Fatalf("process returned error: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer token header, got %q", gotAuth)
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "too many jobs in progress"})
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL, "")
	_, err := client.process(processArgs{SourceID: "src-1"})
	if err == nil {
		t.Fatal("expected an error")
	}
	apiErr, ok := err.(*apiError)
	if !ok {
		t.Fatalf("expected *apiError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", apiErr.StatusCode)
	}
}

func TestClientListJobsFiltersByStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "running" {
			t.Fatalf("expected status=running query param, got %q", r.URL.RawQuery)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"jobs": []jobSummary{{JobID: "job-1", Status: "running"}},
		})
	}))
	defer srv.Close()

	client := newAPIClient(srv.URL, "")
	jobs, err := client.listJobs("running")
	if err != nil {
		t.Fatalf("listJobs returned error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].JobID != "job-1" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}
