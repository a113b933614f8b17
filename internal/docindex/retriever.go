package docindex

import (
	"context"
	"sort"
	"strings"
)

// DefaultTopK is the number of passages retrieved to ground a quiz
const DefaultTopK = 6

// SearchResult is one retrieved chunk with its similarity score
type SearchResult struct {
	ChunkID  int64   `json:"chunk_id"`
	NoteID   string  `json:"note_id"`
	Path     string  `json:"path"`
	Heading  string  `json:"heading"`
	Content  string  `json:"content"`
	Score    float32 `json:"score"`
	Position int     `json:"position"`
}

// Retriever performs similarity search over embedded chunks
type Retriever struct {
	index    *Index
	embedder Embedder
}

// NewRetriever creates a new retriever
func NewRetriever(index *Index, embedder Embedder) *Retriever {
	return &Retriever{
		index:    index,
		embedder: embedder,
	}
}

// Search returns the topK chunks most similar to query, best first.
// topK <= 0 returns every scored chunk.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	chunks, err := r.index.ListEmbeddedChunks(r.embedder.Model())
	if err != nil {
		return nil, err
	}

	results := []SearchResult{}
	for _, c := range chunks {
		vec := DecodeEmbedding(c.Embedding)
		if vec == nil {
			continue
		}
		results = append(results, SearchResult{
			ChunkID:  c.ID,
			NoteID:   c.NoteID,
			Path:     c.NotePath,
			Heading:  c.Heading,
			Content:  c.Content,
			Position: c.Position,
			Score:    CosineSimilarity(queryVec, vec),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// SearchWithThreshold returns results scoring at least minScore
func (r *Retriever) SearchWithThreshold(ctx context.Context, query string, topK int, minScore float32) ([]SearchResult, error) {
	results, err := r.Search(ctx, query, 0)
	if err != nil {
		return nil, err
	}

	filtered := []SearchResult{}
	for _, res := range results {
		if res.Score >= minScore {
			filtered = append(filtered, res)
		}
	}
	if topK > 0 && len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered, nil
}

// RetrieveContext returns the contents of the k best chunks for topic,
// joined by blank lines. An empty index yields "".
func (r *Retriever) RetrieveContext(ctx context.Context, topic string, k int) (string, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	results, err := r.SearchWithThreshold(ctx, topic, k, minContextScore)
	if err != nil {
		return "", err
	}

	passages := make([]string, len(results))
	for i, res := range results {
		passages[i] = res.Content
	}
	return strings.Join(passages, "\n\n"), nil
}

// minContextScore drops chunks that share no vocabulary with the topic
const minContextScore = 1e-6
