package clustering

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPEmbedder_PlainProtocol(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Texts     []string `json:"texts"`
			MaxLength int      `json:"max_length"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.MaxLength != 512 {
			t.Errorf("max_length: got %d want 512", req.MaxLength)
		}

		vectors := make([][]float64, len(req.Texts))
		for i := range vectors {
			vectors[i] = []float64{float64(i), 1}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": vectors})
	}))
	defer srv.Close()

	embedder := NewHTTPEmbedder(srv.URL+"/embed", 2, 512, time.Second)
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("vectors: got %d want 3", len(vectors))
	}
	for _, v := range vectors {
		if len(v) != 2 {
			t.Fatalf("unexpected vector dimension: %d", len(v))
		}
	}
}

func TestHTTPEmbedder_OpenAIProtocol(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Input) == 0 {
			t.Errorf("expected input field for /v1/embeddings endpoint")
		}

		// Return data rows out of order; the client must sort by index.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"index": 1, "embedding": []float64{0, 1}},
				{"index": 0, "embedding": []float64{1, 0}},
			},
		})
	}))
	defer srv.Close()

	embedder := NewHTTPEmbedder(srv.URL+"/v1/embeddings", 8, 512, time.Second)
	vectors, err := embedder.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if !almostEqual(vectors[0][0], 1) || !almostEqual(vectors[1][1], 1) {
		t.Fatalf("vectors not reordered by index: %v", vectors)
	}
}

func TestHTTPEmbedder_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	embedder := NewHTTPEmbedder(srv.URL+"/embed", 8, 512, time.Second)
	if _, err := embedder.Embed(context.Background(), []string{"a"}); err == nil {
		t.Fatalf("expected error from failing service")
	} else if !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status in error, got %v", err)
	}
}

func TestHTTPEmbedder_CountMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": [][]float64{{1, 0}}})
	}))
	defer srv.Close()

	embedder := NewHTTPEmbedder(srv.URL+"/embed", 8, 512, time.Second)
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected count mismatch error")
	}
}

func TestHTTPEmbedder_InconsistentDimensions(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": [][]float64{{1, 0}, {1, 0, 0}},
		})
	}))
	defer srv.Close()

	embedder := NewHTTPEmbedder(srv.URL+"/embed", 8, 512, time.Second)
	if _, err := embedder.Embed(context.Background(), []string{"a", "b"}); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestHTTPEmbedder_EmptyInput(t *testing.T) {
	t.Parallel()

	embedder := NewHTTPEmbedder("http://127.0.0.1:1/embed", 8, 512, time.Second)
	vectors, err := embedder.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty input should not error: %v", err)
	}
	if vectors != nil {
		t.Fatalf("expected nil vectors, got %v", vectors)
	}
}

func TestNormalizeEmbeddingEndpoint(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"", DefaultEmbeddingEndpoint},
		{"http://embed.internal:9000", "http://embed.internal:9000/embed"},
		{"http://embed.internal:9000/", "http://embed.internal:9000/embed"},
		{"http://embed.internal:9000/v1/embeddings", "http://embed.internal:9000/v1/embeddings"},
	}
	for _, tc := range cases {
		if got := normalizeEmbeddingEndpoint(tc.in); got != tc.want {
			t.Fatalf("normalize %q: got %q want %q", tc.in, got, tc.want)
		}
	}
}
