package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

const (
	// searchTimeout bounds one embed-and-search round trip.
	searchTimeout = 10 * time.Second

	// minSimilarity is the relevance floor: chunks scoring at or below it
	// are dropped from results.
	minSimilarity = 0.3

	// defaultTopK is the number of chunks returned per search.
	defaultTopK = 3

	// chunkSize is the target character length of one archival chunk.
	chunkSize = 1000
)

// Querier defines the database operations on archival chunks.
// Following Go best practices: interfaces are defined by the consumer.
type Querier interface {
	// SearchChunks returns up to limit chunks of the given document ordered
	// by cosine similarity to embedding, descending.
	SearchChunks(ctx context.Context, companionID uuid.UUID, documentID string, embedding pgvector.Vector, limit int32) ([]Result, error)

	// InsertChunk stores one embedded chunk of a document.
	InsertChunk(ctx context.Context, companionID uuid.UUID, documentID string, index int, content string, embedding pgvector.Vector) error

	// DeleteDocument removes all chunks of a document.
	DeleteDocument(ctx context.Context, documentID string) error
}

// Store manages archival documents with vector search capabilities.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	querier  Querier
	embedder ai.Embedder
	logger   *slog.Logger
}

// New creates a Store.
func New(querier Querier, embedder ai.Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, embedder: embedder, logger: logger}
}

// VectorSearch returns the chunks of the companion's archival document most
// similar to query, ordered by relevance descending. The result is empty —
// never an error — when the document does not exist or nothing clears the
// relevance floor; callers degrade to an empty context.
func (s *Store) VectorSearch(ctx context.Context, query string, companionID uuid.UUID, documentID string) ([]Result, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := s.embedText(queryCtx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.querier.SearchChunks(queryCtx, companionID, documentID, embedding, defaultTopK)
	if err != nil {
		return nil, fmt.Errorf("searching document %q: %w", documentID, err)
	}

	results := rows[:0]
	for _, r := range rows {
		if r.Similarity > minSimilarity {
			results = append(results, r)
		}
	}

	s.logger.Debug("vector search",
		"document_id", documentID,
		"candidates", len(rows),
		"results", len(results))
	return results, nil
}

// Index chunks, embeds and stores content as the companion's archival
// document, replacing any previous version. Called once at companion-setup
// time; the chat engine never writes archival data.
func (s *Store) Index(ctx context.Context, companionID uuid.UUID, documentID, content string) error {
	chunks := splitChunks(content, chunkSize)
	if len(chunks) == 0 {
		return nil
	}

	if err := s.querier.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("clearing document %q: %w", documentID, err)
	}

	for i, chunk := range chunks {
		embedding, err := s.embedText(ctx, chunk)
		if err != nil {
			return fmt.Errorf("embedding chunk %d of %q: %w", i, documentID, err)
		}
		if err := s.querier.InsertChunk(ctx, companionID, documentID, i, chunk, embedding); err != nil {
			return fmt.Errorf("storing chunk %d of %q: %w", i, documentID, err)
		}
	}

	s.logger.Info("indexed archival document",
		"document_id", documentID,
		"chunks", len(chunks),
		"content_length", len(content))
	return nil
}

// embedText runs text through the embedder and validates the response.
func (s *Store) embedText(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return pgvector.Vector{}, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, errors.New("empty embedding returned")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// splitChunks splits content into paragraph-aligned chunks of roughly size
// characters. Paragraphs longer than size become their own chunk rather than
// being split mid-sentence.
func splitChunks(content string, size int) []string {
	var chunks []string
	var current strings.Builder

	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > size {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	return chunks
}
