package blobstore

import (
	"context"
	"testing"
)

func TestFSStoreWriteReadDelete(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := store.Write(ctx, "a/b/c.pem", []byte("hello"), ModePrivate); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := store.Read(ctx, "a/b/c.pem")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Read = %q, want %q", got, "hello")
	}

	if err := store.Delete(ctx, "a/b/c.pem"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "a/b/c.pem"); err != nil {
		t.Errorf("Delete on missing file should be idempotent, got: %v", err)
	}
	if _, err := store.Read(ctx, "a/b/c.pem"); err == nil {
		t.Error("Read after Delete should fail")
	}
}

func TestFSStoreListIsSortedAndExcludesDirs(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()
	for _, name := range []string{"z.pem", "a.pem", "m.pem"} {
		if err := store.Write(ctx, "domain/public/"+name, []byte("x"), ModePublic); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
	}
	if err := store.EnsureDir(ctx, "domain/public/subdir"); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}

	names, err := store.List(ctx, "domain/public")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a.pem", "m.pem", "z.pem"}
	if len(names) != len(want) {
		t.Fatalf("List returned %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
