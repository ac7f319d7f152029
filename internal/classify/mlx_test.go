package classify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Prompt != "classify this" || req.MaxTokens != 128 {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(classifyResponse{Content: `{"action": "ignore"}`})
	}))
	defer srv.Close()

	got, err := New(srv.URL).Classify("classify this", 128)
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if got != `{"action": "ignore"}` {
		t.Errorf("content = %q", got)
	}
}

func TestClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Classify("p", 10); err == nil {
		t.Error("expected error on HTTP 500")
	}
}

func TestClassifyErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(classifyResponse{Error: "out of memory"})
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Classify("p", 10); err == nil {
		t.Error("expected error on error payload")
	}
}

func TestClassifyUnreachable(t *testing.T) {
	if _, err := New("http://127.0.0.1:1").Classify("p", 10); err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := New(srv.URL).Health(); err != nil {
		t.Errorf("Health() error: %v", err)
	}
}

func TestHealthDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := New(srv.URL).Health(); err == nil {
		t.Error("expected error on HTTP 503")
	}
}
