package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newEmbedServer(t *testing.T, dims int, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" || r.Method != http.MethodPost {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if calls != nil {
			*calls++
		}
		var req struct {
			Inputs []string `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vecs := make([][]float32, len(req.Inputs))
		for i, text := range req.Inputs {
			vec := make([]float32, dims)
			for j := range vec {
				vec[j] = float32(len(text)%7+j) + 1
			}
			vecs[i] = vec
		}
		_ = json.NewEncoder(w).Encode(vecs)
	}))
}

func TestHTTPEmbedderEmbed(t *testing.T) {
	srv := newEmbedServer(t, 4, nil)
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, 4, 16)
	defer e.Close()

	vec, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if len(vec) != 4 {
		t.Fatalf("dimension: got %d, want 4", len(vec))
	}
	// Vectors come back L2-normalized.
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("vector not normalized, squared norm %v", sum)
	}
}

func TestHTTPEmbedderBatchUsesCache(t *testing.T) {
	calls := 0
	srv := newEmbedServer(t, 3, &calls)
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, 3, 16)
	defer e.Close()

	ctx := context.Background()
	if _, err := e.EmbedBatch(ctx, []string{"a", "b"}); err != nil {
		t.Fatalf("EmbedBatch() error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls after first batch: got %d, want 1", calls)
	}
	vecs, err := e.EmbedBatch(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch() cached error: %v", err)
	}
	if calls != 1 {
		t.Errorf("cached batch hit the server, calls = %d", calls)
	}
	if len(vecs) != 2 {
		t.Errorf("results: got %d, want 2", len(vecs))
	}
}

func TestHTTPEmbedderDimensionMismatch(t *testing.T) {
	srv := newEmbedServer(t, 5, nil)
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, 3, 16)
	defer e.Close()

	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestHTTPEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, 3, 16)
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error from failing service")
	}
}

func TestHTTPEmbedderAdoptsDimensions(t *testing.T) {
	srv := newEmbedServer(t, 6, nil)
	defer srv.Close()

	e := NewHTTPEmbedder(srv.URL, 0, 16)
	if e.Dimensions() != 0 {
		t.Fatalf("dimensions before first call: got %d, want 0", e.Dimensions())
	}
	if _, err := e.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	if e.Dimensions() != 6 {
		t.Errorf("dimensions after first call: got %d, want 6", e.Dimensions())
	}
}
