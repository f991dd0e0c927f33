package badger

import (
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colloquy/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	options := badgerhold.DefaultOptions
	options.Dir = t.TempDir()
	options.ValueDir = options.Dir
	options.Logger = nil

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestDocumentCRUD(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	doc := &models.Document{
		ID:          "doc-1",
		WorkspaceID: "ws-1",
		Name:        "report.pdf",
		MimeType:    "application/pdf",
		Status:      models.DocumentStatusPending,
	}
	if err := storage.SaveDocument(doc); err != nil {
		t.Fatalf("Failed to save document: %v", err)
	}
	if doc.CreatedAt.IsZero() || doc.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set on save")
	}

	got, err := storage.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("Failed to get document: %v", err)
	}
	if got.Name != "report.pdf" || got.Status != models.DocumentStatusPending {
		t.Errorf("Unexpected document: %+v", got)
	}

	got.Status = models.DocumentStatusCompleted
	if err := storage.UpdateDocument(got); err != nil {
		t.Fatalf("Failed to update document: %v", err)
	}
	updated, _ := storage.GetDocument("doc-1")
	if updated.Status != models.DocumentStatusCompleted {
		t.Errorf("Expected completed, got %s", updated.Status)
	}

	if err := storage.DeleteDocument("doc-1"); err != nil {
		t.Fatalf("Failed to delete document: %v", err)
	}
	if _, err := storage.GetDocument("doc-1"); err == nil {
		t.Error("Expected error for deleted document")
	}

	// Deleting a missing document is not an error
	if err := storage.DeleteDocument("doc-1"); err != nil {
		t.Errorf("Expected idempotent delete, got %v", err)
	}
}

func TestSaveDocumentRequiresID(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	if err := storage.SaveDocument(&models.Document{Name: "no-id"}); err == nil {
		t.Error("Expected error for document without ID")
	}
}

func TestListDocumentsByWorkspace(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	base := time.Now().Add(-time.Hour)
	for i, ws := range []string{"ws-1", "ws-1", "ws-2"} {
		doc := &models.Document{
			ID:          "doc-" + string(rune('a'+i)),
			WorkspaceID: ws,
			Status:      models.DocumentStatusPending,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := storage.SaveDocument(doc); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := storage.ListDocuments("ws-1")
	if err != nil {
		t.Fatalf("Failed to list documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	// Newest first
	if docs[0].CreatedAt.Before(docs[1].CreatedAt) {
		t.Error("Expected newest-first ordering")
	}

	empty, err := storage.ListDocuments("ws-none")
	if err != nil {
		t.Fatalf("Listing empty workspace failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no documents, got %d", len(empty))
	}
}

func TestListDocumentsByStatus(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	statuses := []models.DocumentStatus{
		models.DocumentStatusFailed,
		models.DocumentStatusFailed,
		models.DocumentStatusCompleted,
		models.DocumentStatusFailed,
	}
	for i, status := range statuses {
		doc := &models.Document{
			ID:          "doc-" + string(rune('a'+i)),
			WorkspaceID: "ws-1",
			Status:      status,
		}
		if err := storage.SaveDocument(doc); err != nil {
			t.Fatal(err)
		}
	}

	failed, err := storage.ListDocumentsByStatus(models.DocumentStatusFailed, 2)
	if err != nil {
		t.Fatalf("Failed to list by status: %v", err)
	}
	if len(failed) != 2 {
		t.Errorf("Expected limit of 2, got %d", len(failed))
	}
	for _, doc := range failed {
		if doc.Status != models.DocumentStatusFailed {
			t.Errorf("Expected failed status, got %s", doc.Status)
		}
	}
}

func TestClaimProcessing(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	doc := &models.Document{
		ID:          "doc-1",
		WorkspaceID: "ws-1",
		Status:      models.DocumentStatusPending,
	}
	if err := storage.SaveDocument(doc); err != nil {
		t.Fatal(err)
	}

	claimed, err := storage.ClaimProcessing("doc-1", models.DocumentStatusPending)
	if err != nil {
		t.Fatalf("Failed to claim document: %v", err)
	}
	if claimed.Status != models.DocumentStatusProcessing {
		t.Errorf("Expected processing, got %s", claimed.Status)
	}

	// Second claim with stale expected status loses
	if _, err := storage.ClaimProcessing("doc-1", models.DocumentStatusPending); err == nil {
		t.Error("Expected second claim to fail")
	}
}

func TestClaimProcessingConcurrent(t *testing.T) {
	db := newTestDB(t)
	storage := NewDocumentStorage(db, arbor.NewLogger())

	doc := &models.Document{
		ID:          "doc-race",
		WorkspaceID: "ws-1",
		Status:      models.DocumentStatusFailed,
	}
	if err := storage.SaveDocument(doc); err != nil {
		t.Fatal(err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := storage.ClaimProcessing("doc-race", models.DocumentStatusFailed); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Errorf("Expected exactly one successful claim, got %d", won)
	}
}

func TestChunkLifecycle(t *testing.T) {
	db := newTestDB(t)
	storage := NewChunkStorage(db, arbor.NewLogger())

	// Insert out of order to verify retrieval ordering
	for _, idx := range []int{2, 0, 1} {
		chunk := &models.Chunk{
			ID:          "chk-" + string(rune('a'+idx)),
			DocumentID:  "doc-1",
			WorkspaceID: "ws-1",
			ChunkIndex:  idx,
			Content:     strings.Repeat("x", idx+1),
			Embedding:   []float32{1, 0, 0},
		}
		if err := storage.SaveChunk(chunk); err != nil {
			t.Fatalf("Failed to save chunk: %v", err)
		}
	}

	chunks, err := storage.GetChunks("doc-1")
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("Expected 3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			t.Errorf("Expected chunk index %d at position %d, got %d", i, i, chunk.ChunkIndex)
		}
	}

	count, err := storage.CountChunks("doc-1")
	if err != nil || count != 3 {
		t.Errorf("Expected count 3, got %d (err %v)", count, err)
	}

	if err := storage.DeleteChunks("doc-1"); err != nil {
		t.Fatalf("Failed to delete chunks: %v", err)
	}
	count, _ = storage.CountChunks("doc-1")
	if count != 0 {
		t.Errorf("Expected 0 chunks after delete, got %d", count)
	}
}

func TestSearchChunks(t *testing.T) {
	db := newTestDB(t)
	docStorage := NewDocumentStorage(db, arbor.NewLogger())
	chunkStorage := NewChunkStorage(db, arbor.NewLogger())

	if err := docStorage.SaveDocument(&models.Document{
		ID:          "doc-1",
		WorkspaceID: "ws-1",
		Name:        "handbook.pdf",
		Status:      models.DocumentStatusCompleted,
	}); err != nil {
		t.Fatal(err)
	}

	vectors := map[string][]float32{
		"chk-exact":      {1, 0, 0}, // similarity 1.0
		"chk-close":      {1, 1, 0}, // ~0.707
		"chk-orthogonal": {0, 1, 0}, // 0.0
	}
	for id, vec := range vectors {
		if err := chunkStorage.SaveChunk(&models.Chunk{
			ID:          id,
			DocumentID:  "doc-1",
			WorkspaceID: "ws-1",
			Content:     "content for " + id,
			Embedding:   vec,
		}); err != nil {
			t.Fatal(err)
		}
	}
	// Chunk in another workspace must never appear
	if err := chunkStorage.SaveChunk(&models.Chunk{
		ID:          "chk-other",
		DocumentID:  "doc-2",
		WorkspaceID: "ws-2",
		Content:     "other workspace",
		Embedding:   []float32{1, 0, 0},
	}); err != nil {
		t.Fatal(err)
	}

	query := []float32{1, 0, 0}
	results, err := chunkStorage.SearchChunks("ws-1", query, 0.5, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results above threshold, got %d", len(results))
	}
	if results[0].ChunkID != "chk-exact" {
		t.Errorf("Expected chk-exact first, got %s", results[0].ChunkID)
	}
	if results[0].Similarity < results[1].Similarity {
		t.Error("Expected descending similarity")
	}
	if results[0].DocumentName != "handbook.pdf" {
		t.Errorf("Expected document name to be resolved, got %q", results[0].DocumentName)
	}

	// Cap applies after ranking
	capped, err := chunkStorage.SearchChunks("ws-1", query, 0.0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(capped) != 1 || capped[0].ChunkID != "chk-exact" {
		t.Errorf("Expected single best result, got %+v", capped)
	}

	// No matches is a valid empty result, not an error
	empty, err := chunkStorage.SearchChunks("ws-1", []float32{0, 0, 1}, 0.9, 10)
	if err != nil {
		t.Fatalf("Empty search failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no results, got %d", len(empty))
	}
}

func TestCosineSimilarity(t *testing.T) {
	if sim, ok := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); !ok || math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("Expected similarity 1.0, got %f (ok %v)", sim, ok)
	}
	if sim, ok := cosineSimilarity([]float32{1, 0}, []float32{0, 1}); !ok || math.Abs(sim) > 1e-9 {
		t.Errorf("Expected similarity 0.0, got %f (ok %v)", sim, ok)
	}
	if _, ok := cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); ok {
		t.Error("Expected mismatched lengths to be rejected")
	}
	if _, ok := cosineSimilarity([]float32{0, 0}, []float32{1, 0}); ok {
		t.Error("Expected zero vector to be rejected")
	}
}
