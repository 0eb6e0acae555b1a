package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewDocument(t *testing.T) {
	doc := New("pipeline", "<diagram/>")
	if doc.ID == "" {
		t.Error("New should assign an ID")
	}
	if doc.Name != "pipeline" || doc.Source != "<diagram/>" {
		t.Errorf("fields = %q/%q", doc.Name, doc.Source)
	}
	if doc.CreatedAt.IsZero() || !doc.CreatedAt.Equal(doc.UpdatedAt) {
		t.Error("timestamps should be set and equal on creation")
	}
	if other := New("pipeline", "<diagram/>"); other.ID == doc.ID {
		t.Error("IDs should be unique")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close(ctx)

	doc := New("arch", "<diagram/>")
	if err := s.Put(ctx, doc); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "arch" {
		t.Errorf("Name = %q, want arch", got.Name)
	}

	// Mutating the returned copy must not affect the stored document.
	got.Name = "mutated"
	again, _ := s.Get(ctx, doc.ID)
	if again.Name != "arch" {
		t.Error("Get should return a copy")
	}

	if err := s.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreListOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		doc := &Document{ID: id, CreatedAt: base.Add(time.Duration(2-i) * time.Hour)}
		if err := s.Put(ctx, doc); err != nil {
			t.Fatal(err)
		}
	}

	docs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	want := []string{"b", "a", "c"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("List order = %v, want %v", ids, want)
		}
	}
}
