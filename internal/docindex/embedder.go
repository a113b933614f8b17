package docindex

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Embedder produces vector embeddings from text
type Embedder interface {
	// Embed returns a float32 vector for the given text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Model names the embedding space; vectors from different models are never compared
	Model() string
}

// KeywordEmbedder hashes word tokens into a fixed number of buckets. It
// needs no external service and is the default when no embedding API key
// is configured.
type KeywordEmbedder struct {
	dimension int
}

// NewKeywordEmbedder creates a keyword embedder with the given vector size
func NewKeywordEmbedder(dimension int) *KeywordEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &KeywordEmbedder{dimension: dimension}
}

// Model identifies the bucket count so a resize forces re-embedding
func (e *KeywordEmbedder) Model() string {
	return fmt.Sprintf("keyword-%d", e.dimension)
}

// Embed produces a hash-based embedding for keyword matching
func (e *KeywordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return e.embedText(text), nil
}

// EmbedBatch embeds multiple texts
func (e *KeywordEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = e.embedText(text)
	}
	return result, nil
}

func (e *KeywordEmbedder) embedText(text string) []float32 {
	vec := make([]float32, e.dimension)
	for _, word := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%uint32(e.dimension)] += 1.0
	}
	normalize(vec)
	return vec
}

// CosineSimilarity computes cosine similarity between two vectors
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return float32(dot / denom)
}

// EncodeEmbedding serializes a float32 vector to bytes for SQLite BLOB storage
func EncodeEmbedding(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeEmbedding deserializes bytes to a float32 vector
func DecodeEmbedding(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec
}

// normalize L2-normalizes a vector in place
func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}

// tokenize splits text into lowercase letter and digit runs
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
