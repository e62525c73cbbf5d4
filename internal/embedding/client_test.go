package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed(t *testing.T) {
	var gotReq embedRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/embeddings" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer srv.Close()

	c := New("test-key", "voyage-3-large")
	c.baseURL = srv.URL

	vec, err := c.Embed(context.Background(), "meeting notes", InputTypeQuery)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("vector = %v", vec)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if len(gotReq.Input) != 1 || gotReq.Input[0] != "meeting notes" {
		t.Errorf("input = %v", gotReq.Input)
	}
	if gotReq.Model != "voyage-3-large" {
		t.Errorf("model = %q", gotReq.Model)
	}
	if gotReq.InputType != "query" {
		t.Errorf("input_type = %q, want query", gotReq.InputType)
	}
}

func TestEmbedNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("bad-key", "voyage-3-large")
	c.baseURL = srv.URL

	if _, err := c.Embed(context.Background(), "query", InputTypeQuery); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestEmbedEmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	c := New("test-key", "voyage-3-large")
	c.baseURL = srv.URL

	if _, err := c.Embed(context.Background(), "query", InputTypeQuery); err == nil {
		t.Fatal("expected error for empty embeddings array")
	}
}
