package clustering

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	DefaultEmbeddingEndpoint       = "http://127.0.0.1:8844/embed"
	DefaultEmbeddingBatchSize      = 32
	DefaultEmbeddingMaxLength      = 512
	DefaultEmbeddingRequestTimeout = 45 * time.Second
)

// Embedder produces one vector per input text. Implementations must return
// exactly len(texts) vectors or an error.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// HTTPEmbedder calls an embedding HTTP service. It accepts both the plain
// {"texts": [...]} protocol and OpenAI-style /v1/embeddings endpoints.
type HTTPEmbedder struct {
	Endpoint       string
	BatchSize      int
	MaxLength      int
	RequestTimeout time.Duration
	Client         *http.Client
}

type embedRequest struct {
	Texts     []string `json:"texts,omitempty"`
	Input     []string `json:"input,omitempty"`
	MaxLength int      `json:"max_length,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
	Data       []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

func NewHTTPEmbedder(endpoint string, batchSize, maxLength int, timeout time.Duration) *HTTPEmbedder {
	if batchSize <= 0 {
		batchSize = DefaultEmbeddingBatchSize
	}
	if maxLength <= 0 {
		maxLength = DefaultEmbeddingMaxLength
	}
	if timeout <= 0 {
		timeout = DefaultEmbeddingRequestTimeout
	}
	return &HTTPEmbedder{
		Endpoint:       normalizeEmbeddingEndpoint(endpoint),
		BatchSize:      batchSize,
		MaxLength:      maxLength,
		RequestTimeout: timeout,
	}
}

func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float64, 0, len(texts))
	dimensions := 0
	for start := 0; start < len(texts); start += e.BatchSize {
		end := min(start+e.BatchSize, len(texts))
		batch, err := e.requestEmbeddings(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding response count mismatch: requested=%d returned=%d", end-start, len(batch))
		}
		for i, vector := range batch {
			if err := validateVector(vector, &dimensions); err != nil {
				return nil, fmt.Errorf("text %d: %w", start+i, err)
			}
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (e *HTTPEmbedder) requestEmbeddings(ctx context.Context, texts []string) ([][]float64, error) {
	payload := embedRequest{
		Texts:     texts,
		MaxLength: e.MaxLength,
	}

	parsedEndpoint, err := url.Parse(e.Endpoint)
	if err == nil && strings.HasSuffix(parsedEndpoint.Path, "/v1/embeddings") {
		payload = embedRequest{
			Input: texts,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, e.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(requestCtx, http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embedding service status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	vectors := parsed.Embeddings
	if len(vectors) == 0 && len(parsed.Data) > 0 {
		sort.Slice(parsed.Data, func(i, j int) bool {
			return parsed.Data[i].Index < parsed.Data[j].Index
		})
		vectors = make([][]float64, 0, len(parsed.Data))
		for _, row := range parsed.Data {
			vectors = append(vectors, row.Embedding)
		}
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding response missing vectors")
	}

	return vectors, nil
}

// validateVector checks for non-finite values and a consistent dimension
// across the whole batch. The first vector seen fixes the dimension.
func validateVector(vector []float64, dimensions *int) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty embedding vector")
	}
	if *dimensions == 0 {
		*dimensions = len(vector)
	} else if len(vector) != *dimensions {
		return fmt.Errorf("expected %d dimensions, got %d", *dimensions, len(vector))
	}
	for i, value := range vector {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("vector has non-finite value at index %d", i)
		}
	}
	return nil
}

func normalizeEmbeddingEndpoint(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultEmbeddingEndpoint
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	if parsed.Path == "" || parsed.Path == "/" {
		parsed.Path = "/embed"
	}
	return parsed.String()
}
