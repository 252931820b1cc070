package syncer

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestPackArchiveRoundTrip(t *testing.T) {
	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "event.json"), []byte(`{"id":"ev-1"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(srcDir, "media"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "media", "crack.jpg"), []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	destPath := filepath.Join(t.TempDir(), "ev-1.tar.gz")
	sha, size, err := packArchive(srcDir, destPath)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatal(err)
	}
	if int64(len(data)) != size {
		t.Errorf("reported size %d, file is %d bytes", size, len(data))
	}
	sum := sha256.Sum256(data)
	if sha != hex.EncodeToString(sum[:]) {
		t.Error("reported sha256 does not match archive content")
	}

	// Unpack and verify relative slash paths and content.
	f, err := os.Open(destPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gz)

	entries := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		body, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		entries[hdr.Name] = string(body)
	}

	if entries["event.json"] != `{"id":"ev-1"}` {
		t.Errorf("event.json content = %q", entries["event.json"])
	}
	if entries["media/crack.jpg"] != "jpeg bytes" {
		t.Errorf("media entry missing or wrong: %v", entries)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %v", entries)
	}
}

func TestPackArchiveMissingDir(t *testing.T) {
	destPath := filepath.Join(t.TempDir(), "out.tar.gz")
	if _, _, err := packArchive(filepath.Join(t.TempDir(), "nope"), destPath); err == nil {
		t.Fatal("expected error for missing source directory")
	}
}
