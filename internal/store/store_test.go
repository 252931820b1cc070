package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/structiq/fieldscan-agent/models"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAddMediaCopiesAndHashes(t *testing.T) {
	s := New(t.TempDir())
	src := writeTemp(t, t.TempDir(), "crack.jpg", "fake jpeg bytes")

	att, err := s.AddMedia("ev-1", src)
	if err != nil {
		t.Fatal(err)
	}
	if att.Kind != models.AttachmentPhoto {
		t.Errorf("kind = %s, want photo", att.Kind)
	}
	if att.FileName != "crack.jpg" {
		t.Errorf("file name = %s", att.FileName)
	}
	if att.SizeBytes != int64(len("fake jpeg bytes")) {
		t.Errorf("size = %d", att.SizeBytes)
	}

	sum := sha256.Sum256([]byte("fake jpeg bytes"))
	if att.SHA256 != hex.EncodeToString(sum[:]) {
		t.Errorf("sha256 mismatch: %s", att.SHA256)
	}

	copied, err := os.ReadFile(att.LocalPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(copied) != "fake jpeg bytes" {
		t.Errorf("copied content mismatch: %q", copied)
	}
	if filepath.Dir(att.LocalPath) != filepath.Join(s.EventDir("ev-1"), "media") {
		t.Errorf("media stored outside event dir: %s", att.LocalPath)
	}
}

func TestAddMediaResolvesNameClashes(t *testing.T) {
	s := New(t.TempDir())
	srcDir := t.TempDir()
	first := writeTemp(t, srcDir, "site.jpg", "first")

	a1, err := s.AddMedia("ev-1", first)
	if err != nil {
		t.Fatal(err)
	}
	// Same name, different content, from another directory.
	otherDir := t.TempDir()
	second := writeTemp(t, otherDir, "site.jpg", "second")
	a2, err := s.AddMedia("ev-1", second)
	if err != nil {
		t.Fatal(err)
	}

	if a1.FileName == a2.FileName {
		t.Fatalf("name clash not resolved: both %s", a1.FileName)
	}
	if a2.FileName != "site-1.jpg" {
		t.Errorf("suffixed name = %s, want site-1.jpg", a2.FileName)
	}
	got, err := os.ReadFile(a2.LocalPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Errorf("second file content = %q", got)
	}
}

func TestAddMediaKinds(t *testing.T) {
	s := New(t.TempDir())
	srcDir := t.TempDir()
	cases := []struct {
		name string
		want models.AttachmentKind
	}{
		{"voice-note.m4a", models.AttachmentAudio},
		{"plan.pdf", models.AttachmentDocument},
		{"photo.HEIC", models.AttachmentPhoto},
	}
	for _, tc := range cases {
		src := writeTemp(t, srcDir, tc.name, "x")
		att, err := s.AddMedia("ev-1", src)
		if err != nil {
			t.Fatal(err)
		}
		if att.Kind != tc.want {
			t.Errorf("%s: kind = %s, want %s", tc.name, att.Kind, tc.want)
		}
	}
}

func TestWriteSnapshot(t *testing.T) {
	s := New(t.TempDir())
	now := time.Now().UTC()
	snap := &Snapshot{
		Event: &models.Event{
			ID:        "ev-1",
			Title:     "Spalling under girder G3",
			Status:    models.EventReady,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Defects: []*models.DefectRecord{
			{EventID: "ev-1", Component: "girder", CreatedAt: now},
		},
	}
	if err := s.WriteSnapshot(snap); err != nil {
		t.Fatal(err)
	}
	if snap.WrittenAt.IsZero() {
		t.Error("WrittenAt not stamped")
	}

	data, err := os.ReadFile(filepath.Join(s.EventDir("ev-1"), "event.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Event.ID != "ev-1" || len(got.Defects) != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got.Assessment != nil {
		t.Error("nil assessment serialised as non-nil")
	}
}

func TestWriteSnapshotRequiresEvent(t *testing.T) {
	s := New(t.TempDir())
	if err := s.WriteSnapshot(&Snapshot{}); err == nil {
		t.Fatal("expected error for snapshot without event")
	}
}

func TestRemoveEvent(t *testing.T) {
	s := New(t.TempDir())
	src := writeTemp(t, t.TempDir(), "a.jpg", "x")
	if _, err := s.AddMedia("ev-1", src); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveEvent("ev-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(s.EventDir("ev-1")); !os.IsNotExist(err) {
		t.Fatal("event dir still exists after RemoveEvent")
	}
	// Removing a missing event is not an error.
	if err := s.RemoveEvent("never-existed"); err != nil {
		t.Fatal(err)
	}
}
