package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

const testPracticePath = "/practice/pediatric-associates-3187"

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config",
			config: Config{
				BaseURL:      "https://healow.example.com/apps",
				PracticePath: testPracticePath,
			},
			expectError: false,
		},
		{
			name: "missing base URL",
			config: Config{
				PracticePath: testPracticePath,
			},
			expectError: true,
			errorMsg:    "base URL is required",
		},
		{
			name: "missing practice path",
			config: Config{
				BaseURL: "https://healow.example.com/apps",
			},
			expectError: true,
			errorMsg:    "practice path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got nil")
					return
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
					return
				}
				if c == nil {
					t.Error("Client is nil")
				}
			}
		})
	}
}

func TestBootstrap(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != testPracticePath {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><head><meta name="_csrf" content="tok-abc123"></head></html>`))
	}))
	defer ts.Close()

	c, err := New(DefaultConfig(ts.URL, testPracticePath))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if c.Ready() {
		t.Error("Client should not be ready before Bootstrap")
	}

	if err := c.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap error: %v", err)
	}

	if !c.Ready() {
		t.Error("Client should be ready after Bootstrap")
	}
	if c.token != "tok-abc123" {
		t.Errorf("token = %q, want %q", c.token, "tok-abc123")
	}
}

func TestBootstrap_NoToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head></head></html>`))
	}))
	defer ts.Close()

	c, err := New(DefaultConfig(ts.URL, testPracticePath))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	if err := c.Bootstrap(context.Background()); !errors.Is(err, ErrProtocolViolation) {
		t.Errorf("Bootstrap without token = %v, want ErrProtocolViolation", err)
	}
}

func TestBootstrap_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c, err := New(DefaultConfig(ts.URL, testPracticePath))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	err = c.Bootstrap(context.Background())
	var rqe *RemoteQueryError
	if !errors.As(err, &rqe) {
		t.Fatalf("Bootstrap = %v, want *RemoteQueryError", err)
	}
	if rqe.ErrorClass != ErrorClassServer {
		t.Errorf("ErrorClass = %q, want server", rqe.ErrorClass)
	}
}

func TestPostForm_RequiresSession(t *testing.T) {
	c, err := New(DefaultConfig("https://healow.example.com/apps", testPracticePath))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	_, err = c.PostForm(context.Background(), ActionProviderList, nil)
	if !errors.Is(err, ErrSessionNotReady) {
		t.Errorf("PostForm before Bootstrap = %v, want ErrSessionNotReady", err)
	}
}

func TestPostForm_SendsSessionHeaders(t *testing.T) {
	var gotHeader http.Header
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"status":"success"}`))
	}))
	defer ts.Close()

	c, err := New(DefaultConfig(ts.URL, testPracticePath))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c.SetToken("tok-42")

	body, err := c.PostForm(context.Background(), ActionProviderList, []FormField{
		{"facility_id", "13"},
		{"page", "1"},
	})
	if err != nil {
		t.Fatalf("PostForm error: %v", err)
	}

	if string(body) != `{"status":"success"}` {
		t.Errorf("body = %q", body)
	}
	if got := gotHeader.Get("X-CSRF-TOKEN"); got != "tok-42" {
		t.Errorf("X-CSRF-TOKEN = %q, want %q", got, "tok-42")
	}
	if got := gotHeader.Get("Content-Type"); got != "application/x-www-form-urlencoded; charset=UTF-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if string(gotBody) != "facility_id=13&page=1" {
		t.Errorf("request body = %q, want %q", gotBody, "facility_id=13&page=1")
	}
}

func TestPostForm_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer ts.Close()

	c, err := New(DefaultConfig(ts.URL, testPracticePath))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	c.SetToken("tok")

	_, err = c.PostForm(context.Background(), ActionSlotsByDate, nil)
	var rqe *RemoteQueryError
	if !errors.As(err, &rqe) {
		t.Fatalf("PostForm = %v, want *RemoteQueryError", err)
	}
	if rqe.ErrorClass != ErrorClassClient {
		t.Errorf("ErrorClass = %q, want client", rqe.ErrorClass)
	}
	if calls != 1 {
		t.Errorf("Client errors must not be retried: %d calls", calls)
	}
}

func TestClassifyStatus(t *testing.T) {
	c, err := New(DefaultConfig("https://healow.example.com/apps", testPracticePath))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	tests := []struct {
		status int
		want   ErrorClass
	}{
		{http.StatusTooManyRequests, ErrorClassRateLimit},
		{http.StatusBadRequest, ErrorClassClient},
		{http.StatusNotFound, ErrorClassClient},
		{http.StatusInternalServerError, ErrorClassServer},
		{http.StatusBadGateway, ErrorClassServer},
		{http.StatusOK, ""},
	}

	for _, tt := range tests {
		if got := c.classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
