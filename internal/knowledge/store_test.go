package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/halcyon0/halcyon/internal/log"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	embedErr    error
	returnEmpty bool
	callCount   int
	lastInput   string
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(api.Registry) {}

func (m *mockEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		m.lastInput = req.Input[0].Content[0].Text
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.returnEmpty {
		return &ai.EmbedResponse{}, nil
	}
	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: []float32{0.1, 0.2, 0.3}}},
	}, nil
}

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	searchResults []Result
	searchErr     error
	inserted      []string
	deletedDocs   []string
}

func (m *mockQuerier) SearchChunks(context.Context, uuid.UUID, string, pgvector.Vector, int32) ([]Result, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResults, nil
}

func (m *mockQuerier) InsertChunk(_ context.Context, _ uuid.UUID, _ string, _ int, content string, _ pgvector.Vector) error {
	m.inserted = append(m.inserted, content)
	return nil
}

func (m *mockQuerier) DeleteDocument(_ context.Context, documentID string) error {
	m.deletedDocs = append(m.deletedDocs, documentID)
	return nil
}

func TestVectorSearch_OrdersAndFilters(t *testing.T) {
	q := &mockQuerier{
		searchResults: []Result{
			{Content: "highly relevant", Similarity: 0.92},
			{Content: "somewhat relevant", Similarity: 0.55},
			{Content: "noise below floor", Similarity: 0.12},
		},
	}
	store := New(q, &mockEmbedder{}, log.NewNop())

	companionID := uuid.New()
	results, err := store.VectorSearch(context.Background(), "what do you like?", companionID, DocumentID(companionID))
	if err != nil {
		t.Fatalf("VectorSearch() = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 (floor filters the third)", len(results))
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("results must be ordered by similarity descending")
	}
}

func TestVectorSearch_EmptyWhenNoDocument(t *testing.T) {
	store := New(&mockQuerier{}, &mockEmbedder{}, log.NewNop())

	companionID := uuid.New()
	results, err := store.VectorSearch(context.Background(), "query", companionID, DocumentID(companionID))
	if err != nil {
		t.Fatalf("VectorSearch() = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %v, want empty", results)
	}
}

func TestVectorSearch_EmbedsTheQuery(t *testing.T) {
	embedder := &mockEmbedder{}
	store := New(&mockQuerier{}, embedder, log.NewNop())

	companionID := uuid.New()
	_, err := store.VectorSearch(context.Background(), "favorite walks", companionID, DocumentID(companionID))
	if err != nil {
		t.Fatal(err)
	}
	if embedder.lastInput != "favorite walks" {
		t.Errorf("embedded %q, want the query text", embedder.lastInput)
	}
}

func TestVectorSearch_EmbedderFailure(t *testing.T) {
	embedder := &mockEmbedder{embedErr: errors.New("quota exceeded")}
	store := New(&mockQuerier{}, embedder, log.NewNop())

	companionID := uuid.New()
	if _, err := store.VectorSearch(context.Background(), "q", companionID, DocumentID(companionID)); err == nil {
		t.Error("VectorSearch() should surface embedder errors")
	}
}

func TestVectorSearch_EmptyEmbedding(t *testing.T) {
	embedder := &mockEmbedder{returnEmpty: true}
	store := New(&mockQuerier{}, embedder, log.NewNop())

	companionID := uuid.New()
	if _, err := store.VectorSearch(context.Background(), "q", companionID, DocumentID(companionID)); err == nil {
		t.Error("VectorSearch() should reject an empty embedding")
	}
}

func TestIndex_ReplacesAndChunks(t *testing.T) {
	q := &mockQuerier{}
	embedder := &mockEmbedder{}
	store := New(q, embedder, log.NewNop())

	companionID := uuid.New()
	docID := DocumentID(companionID)
	content := strings.Repeat("A paragraph about the companion.\n\n", 80)

	if err := store.Index(context.Background(), companionID, docID, content); err != nil {
		t.Fatalf("Index() = %v", err)
	}

	if len(q.deletedDocs) != 1 || q.deletedDocs[0] != docID {
		t.Errorf("Index() should clear previous chunks first, deleted %v", q.deletedDocs)
	}
	if len(q.inserted) < 2 {
		t.Errorf("long content should produce multiple chunks, got %d", len(q.inserted))
	}
	if embedder.callCount != len(q.inserted) {
		t.Errorf("each chunk must be embedded once: %d calls for %d chunks",
			embedder.callCount, len(q.inserted))
	}
}

func TestIndex_EmptyContentIsNoop(t *testing.T) {
	q := &mockQuerier{}
	store := New(q, &mockEmbedder{}, log.NewNop())

	companionID := uuid.New()
	if err := store.Index(context.Background(), companionID, DocumentID(companionID), "  \n\n "); err != nil {
		t.Fatalf("Index() = %v", err)
	}
	if len(q.deletedDocs) != 0 || len(q.inserted) != 0 {
		t.Error("empty content should not touch storage")
	}
}

func TestSplitChunks(t *testing.T) {
	chunks := splitChunks("one\n\ntwo\n\nthree", 8)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks: %v", len(chunks), chunks)
	}
	if chunks[0] != "one\n\ntwo" || chunks[1] != "three" {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func TestDocumentID(t *testing.T) {
	id := uuid.MustParse("3fa85f64-5717-4562-b3fc-2c963f66afa6")
	if got := DocumentID(id); got != "3fa85f64-5717-4562-b3fc-2c963f66afa6.txt" {
		t.Errorf("DocumentID() = %q", got)
	}
}
