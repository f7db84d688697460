package host

import (
	"bytes"
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"
)

func TestMemory_LoadDir(t *testing.T) {
	dir := t.TempDir()
	data := []byte("hello content-addressed world")
	if err := os.WriteFile(filepath.Join(dir, "greeting.txt"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	m := NewMemory()
	loaded, err := m.LoadDir(dir, 8)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("loaded = %v, want only greeting.txt", loaded)
	}

	want := Hash(sha256.Sum256(data))
	if loaded["greeting.txt"] != want {
		t.Fatalf("hash = %s, want %s", loaded["greeting.txt"], want)
	}

	ctx := context.Background()
	handle, err := m.LoadContent(ctx, want)
	if err != nil {
		t.Fatalf("LoadContent failed: %v", err)
	}
	if !bytes.Equal(handle.Proof(), want[:]) {
		t.Errorf("proof = %x", handle.Proof())
	}
	if handle.Len() != 4 {
		t.Fatalf("Len() = %d, want 4 blocks of 8 bytes", handle.Len())
	}
	var got []byte
	for i := 0; i < handle.Len(); i++ {
		block, err := handle.ReadBlock(ctx, i)
		if err != nil {
			t.Fatalf("ReadBlock(%d) failed: %v", i, err)
		}
		got = append(got, block...)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("content = %q, want %q", got, data)
	}
}

func TestMemory_LoadDirMissing(t *testing.T) {
	if _, err := NewMemory().LoadDir(filepath.Join(t.TempDir(), "missing"), 0); err == nil {
		t.Error("LoadDir should fail for a missing directory")
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		size int
		in   string
		want int
	}{
		{4, "", 0},
		{4, "abc", 1},
		{4, "abcd", 1},
		{4, "abcde", 2},
	}
	for _, tt := range tests {
		if got := len(split([]byte(tt.in), tt.size)); got != tt.want {
			t.Errorf("split(%q, %d) = %d blocks, want %d", tt.in, tt.size, got, tt.want)
		}
	}
}
