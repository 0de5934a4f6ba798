package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/katayori/pkg/utils"
)

// HTTPEmbedder talks to a text-embeddings-inference style service exposing
// POST /embed with {"inputs": [...]} returning one vector per input.
type HTTPEmbedder struct {
	baseURL    string
	dimensions int
	client     *http.Client
	cache      *vectorCache
}

type embedRequest struct {
	Inputs []string `json:"inputs"`
}

// NewHTTPEmbedder creates an embedder backed by the service at baseURL.
// dimensions is the expected vector size (0 accepts whatever the service
// returns on the first call).
func NewHTTPEmbedder(baseURL string, dimensions, cacheSize int) *HTTPEmbedder {
	return &HTTPEmbedder{
		baseURL:    baseURL,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 30 * time.Second},
		cache:      newVectorCache(cacheSize),
	}
}

// Embed returns the embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.get(text); ok {
		return cached, nil
	}
	vecs, err := e.request(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, serving cached entries locally.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if cached, ok := e.cache.get(text); ok {
			out[i] = cached
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := e.request(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
	}
	return out, nil
}

func (e *HTTPEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, string(b))
	}

	var vecs [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vecs); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(vecs), len(texts))
	}
	for i, vec := range vecs {
		if e.dimensions == 0 {
			e.dimensions = len(vec)
		}
		if len(vec) != e.dimensions {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(vec), e.dimensions)
		}
		utils.NormalizeL2(vec)
		e.cache.set(texts[i], vec)
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension (0 until the first response when
// constructed without an explicit dimension).
func (e *HTTPEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HTTPEmbedder.
func (e *HTTPEmbedder) Close() error {
	return nil
}
