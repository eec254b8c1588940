// Package knowledge provides similarity search over a companion's archival
// document.
//
// An archival document is a companion-scoped text corpus written once at
// companion-setup time. It is chunked, embedded and stored in PostgreSQL
// with pgvector; at chat time the retriever returns the chunks most similar
// to the current user input, or nothing when the document is missing or no
// chunk clears the relevance floor.
package knowledge

import (
	"fmt"

	"github.com/google/uuid"
)

// VectorDimension is the embedding size stored in the document_chunks
// schema. gemini-embedding-001 is truncated to this via OutputDimensionality.
const VectorDimension = 768

// Result is a single retrieved chunk with its relevance score.
type Result struct {
	Content    string
	Similarity float32 // cosine similarity, descending in search results
}

// DocumentID derives the archival document id for a companion.
func DocumentID(companionID uuid.UUID) string {
	return fmt.Sprintf("%s.txt", companionID)
}
