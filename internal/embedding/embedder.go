// Package embedding turns text into fixed-length vectors. Encoders are
// interchangeable behind the Embedder interface: a remote HTTP encoder
// service, a local ONNX session (CGO builds), or a deterministic mock for
// tests. All implementations return L2-normalized vectors so downstream
// cosine similarity reduces to an inner product.
package embedding

import "context"

// Embedder produces vector embeddings for text. The bias pipeline treats
// this as its opaque text-to-vector capability.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
