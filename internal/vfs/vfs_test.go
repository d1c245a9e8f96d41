package vfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mackron/miniaudio-sub001/internal/datasource"
)

func TestOSReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asset.raw")
	want := []byte{1, 2, 3, 4}
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	got, res := Default.ReadFile(path)
	if res != datasource.Success {
		t.Fatalf("ReadFile failed: %v", res)
	}
	if string(got) != string(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestOSReadFileMissing(t *testing.T) {
	_, res := Default.ReadFile(filepath.Join(t.TempDir(), "missing.raw"))
	if res != datasource.InvalidArgs {
		t.Fatalf("expected InvalidArgs, got %v", res)
	}
}

func TestOSOpenAndSeek(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asset.raw")
	if err := os.WriteFile(path, []byte{1, 2, 3, 4, 5}, 0o644); err != nil {
		t.Fatal(err)
	}

	f, res := Default.Open(path)
	if res != datasource.Success {
		t.Fatalf("Open failed: %v", res)
	}
	defer f.Close()

	if _, err := f.Seek(2, 0); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 2)
	if _, err := f.Read(buf); err != nil {
		t.Fatal(err)
	}
	if buf[0] != 3 || buf[1] != 4 {
		t.Fatalf("got %v, want [3 4]", buf)
	}
}
