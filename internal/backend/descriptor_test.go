package backend_test

import (
	"testing"

	"github.com/llamaedge/nexus-gateway/internal/backend"
	"github.com/llamaedge/nexus-gateway/internal/kind"
)

func TestNewRejectsEmptyKinds(t *testing.T) {
	if _, err := backend.New("http://localhost:8080", 0); err == nil {
		t.Error("New() with empty kind set should error")
	}
}

func TestNewRejectsInvalidURL(t *testing.T) {
	if _, err := backend.New("not-a-url", kind.NewSet(kind.Chat)); err == nil {
		t.Error("New() with a schemeless URL should error")
	}
}

func TestNewAccepts(t *testing.T) {
	d, err := backend.New("http://localhost:8080", kind.NewSet(kind.Chat))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.BaseURL.Host != "localhost:8080" {
		t.Errorf("BaseURL.Host = %q, want %q", d.BaseURL.Host, "localhost:8080")
	}
}

func TestIDKindsRoundTrip(t *testing.T) {
	set := kind.NewSet(kind.Chat, kind.Embeddings)
	id := backend.NewID(set)
	if got := id.Kinds(); got != set {
		t.Errorf("ID.Kinds() = %v, want %v", got, set)
	}
}

func TestLoadIncrements(t *testing.T) {
	d, err := backend.New("http://localhost:9000", kind.NewSet(kind.Chat))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.Load() != 0 {
		t.Fatalf("fresh descriptor Load() = %d, want 0", d.Load())
	}
	d.IncrLoad()
	d.IncrLoad()
	if d.Load() != 2 {
		t.Errorf("Load() after two IncrLoad() = %d, want 2", d.Load())
	}
}

func TestSnapshot(t *testing.T) {
	d, err := backend.New("http://localhost:9000", kind.NewSet(kind.Chat, kind.TTS))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	d.ID = backend.NewID(d.Kinds)
	d.IncrLoad()

	snap := d.Snapshot()
	if snap.ID != d.ID {
		t.Errorf("Snapshot().ID = %q, want %q", snap.ID, d.ID)
	}
	if snap.Load != 1 {
		t.Errorf("Snapshot().Load = %d, want 1", snap.Load)
	}
	if len(snap.Kinds) != 2 {
		t.Errorf("Snapshot().Kinds = %v, want 2 entries", snap.Kinds)
	}
}
