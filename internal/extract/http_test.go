package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPExtractor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Text != "Jennifer Smith joined Acme" {
			t.Errorf("unexpected text: %q", req.Text)
		}
		// Extra prose around the JSON must not break parsing.
		w.Write([]byte("Result:\n{\"entities\": [{\"type\": \"person\", \"name\": \"Jennifer Smith\", \"confidence\": 0.9}]}"))
	}))
	defer server.Close()

	ex := NewHTTPExtractor(HTTPConfig{Endpoint: server.URL})
	result, err := ex.Extract(context.Background(), "Jennifer Smith joined Acme")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(result.Entities) != 1 || result.Entities[0].Name != "Jennifer Smith" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHTTPExtractorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ex := NewHTTPExtractor(HTTPConfig{Endpoint: server.URL})
	if _, err := ex.Extract(context.Background(), "text"); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
