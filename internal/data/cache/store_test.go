package cache

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"dwmm/internal/engine/parser"
)

func sampleDeclarations() []parser.Declaration {
	return []parser.Declaration{
		{
			Type:   parser.DeclImport,
			Kind:   parser.KindValue,
			Source: "lodash",
			Specifiers: []parser.Specifier{
				{Type: parser.SpecImportNamed, Imported: "get", Local: "get"},
			},
		},
		{
			Type:     parser.DeclExportDefault,
			Bindings: []parser.Binding{{Type: parser.BindingClass, Name: "Foo"}},
		},
	}
}

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "cache", "declarations.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	if _, ok, err := store.Get(ctx, "/p/a.js", "1-10"); err != nil || ok {
		t.Fatalf("expected miss on empty cache, got ok=%v err=%v", ok, err)
	}

	want := sampleDeclarations()
	if err := store.Put(ctx, "/p/a.js", "1-10", want); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := store.Get(ctx, "/p/a.js", "1-10")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("declarations mismatch:\n got %+v\nwant %+v", got, want)
	}

	if _, ok, _ := store.Get(ctx, "/p/a.js", "2-10"); ok {
		t.Fatal("expected miss when hash differs")
	}

	if err := store.Put(ctx, "/p/a.js", "2-10", nil); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, "/p/a.js", "2-10")
	if err != nil || !ok || len(got) != 0 {
		t.Fatalf("expected empty hit after overwrite, got %v ok=%v err=%v", got, ok, err)
	}

	if err := store.Delete(ctx, "/p/a.js"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n, err := store.Len(ctx); err != nil || n != 0 {
		t.Fatalf("expected empty cache after delete, got %d err=%v", n, err)
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "declarations.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Put(ctx, "/p/b.ts", "h", sampleDeclarations()); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()
	if _, ok, err := reopened.Get(ctx, "/p/b.ts", "h"); err != nil || !ok {
		t.Fatalf("expected persisted entry, got ok=%v err=%v", ok, err)
	}
}

func TestOpen_RejectsBadPaths(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
	dir := t.TempDir()
	if _, err := Open(dir); err == nil {
		t.Fatal("expected error for directory path")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("directory should be untouched: %v", err)
	}
}

func TestOpen_ClearsEntriesFromAnotherPayloadFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "declarations.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Put(ctx, "/p/a.js", "h", sampleDeclarations()); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.db.ExecContext(ctx, `UPDATE cache_meta SET value = 'decl-v0' WHERE key = 'payload_format'`); err != nil {
		t.Fatalf("downgrade format: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()
	if n, err := reopened.Len(ctx); err != nil || n != 0 {
		t.Fatalf("expected stale-format entries to be dropped, got %d (%v)", n, err)
	}

	if err := reopened.Put(ctx, "/p/a.js", "h", sampleDeclarations()); err != nil {
		t.Fatalf("put after reset: %v", err)
	}
	if err := EnsureSchema(reopened.db); err != nil {
		t.Fatalf("ensure schema twice: %v", err)
	}
	if n, _ := reopened.Len(ctx); n != 1 {
		t.Fatalf("matching format must keep entries, got %d", n)
	}
}
