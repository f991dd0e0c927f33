package blob

import (
	"bytes"
	"testing"

	"github.com/ternarybob/arbor"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(arbor.NewLogger(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestUploadDownloadRemove(t *testing.T) {
	store := newTestStore(t)

	data := []byte("file contents")
	if err := store.Upload("ws-1/doc-1/report.pdf", data); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	got, err := store.Download("ws-1/doc-1/report.pdf")
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Downloaded data mismatch: %q", got)
	}

	if err := store.Remove("ws-1/doc-1/report.pdf"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := store.Download("ws-1/doc-1/report.pdf"); err == nil {
		t.Error("Expected error after remove")
	}

	// Removing again is not an error
	if err := store.Remove("ws-1/doc-1/report.pdf"); err != nil {
		t.Errorf("Expected idempotent remove, got %v", err)
	}
}

func TestDownloadMissing(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Download("nope/missing.bin"); err == nil {
		t.Error("Expected error for missing blob")
	}
}

func TestPathEscapeRejected(t *testing.T) {
	store := newTestStore(t)

	for _, path := range []string{"", "../outside.txt", "/etc/passwd", "a/../../b"} {
		if err := store.Upload(path, []byte("x")); err == nil {
			t.Errorf("Expected path %q to be rejected", path)
		}
	}
}
