package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTempFilesFor(t *testing.T) {
	files := TempFilesFor("/tmp/dude-wheres-my-module", "/home/me/proj")
	if files.Sock != "/tmp/dude-wheres-my-module/zShomezSmezSproj.sock" {
		t.Errorf("unexpected socket path %s", files.Sock)
	}
	if files.Lock != "/tmp/dude-wheres-my-module/zShomezSmezSproj.lock" {
		t.Errorf("unexpected lock path %s", files.Lock)
	}
	if filepath.Ext(files.Pids) != ".pids" || filepath.Ext(files.Log) != ".log" {
		t.Errorf("unexpected pids/log paths %s %s", files.Pids, files.Log)
	}
	if ProjectKey(`C:\code\app`) != "C:zScodezSapp" {
		t.Errorf("unexpected windows key %s", ProjectKey(`C:\code\app`))
	}
}

func TestTempFilesCleanupKeepsLog(t *testing.T) {
	files := TempFilesFor(t.TempDir(), "/p")
	if err := files.EnsureDir(); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{files.Lock, files.Pids, files.Log} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := files.Cleanup(); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if _, err := os.Stat(files.Lock); !os.IsNotExist(err) {
		t.Error("expected lock to be removed")
	}
	if _, err := os.Stat(files.Log); err != nil {
		t.Error("expected log to survive cleanup")
	}
}

func TestRootFinder(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "src", "deep")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "package.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(nested, "a.js")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	finder := NewRootFinder(16)
	got, err := finder.Find(file)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if got != root {
		t.Errorf("expected %s, got %s", root, got)
	}

	// Memoized: removing the marker does not change the answer for this finder.
	if err := os.Remove(filepath.Join(root, "package.json")); err != nil {
		t.Fatal(err)
	}
	if again, _ := finder.Find(nested); again != root {
		t.Errorf("expected memoized root %s, got %s", root, again)
	}

	// A fresh finder does not share state.
	if _, err := NewRootFinder(16).Find(nested); err == nil {
		t.Error("expected a fresh finder to miss once the marker is gone")
	}
}
