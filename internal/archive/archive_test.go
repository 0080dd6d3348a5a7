package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKindFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"out/frames", KindFolder},
		{"out/frames.zip", KindZip},
		{"out/frames.ZIP", KindZip},
		{"out/frames.wavepack", KindPack},
		{"out/frames.sqlite", KindPack},
		{"out/frames.db", KindPack},
	}
	for _, tt := range tests {
		if got := KindFromPath(tt.path); got != tt.want {
			t.Errorf("KindFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestFrameName(t *testing.T) {
	if got := FrameName("normal", 7); got != "wave_normal_0007.png" {
		t.Errorf("unexpected frame name %q", got)
	}
	if got := FrameName("height", 12345); got != "wave_height_12345.png" {
		t.Errorf("unexpected frame name %q", got)
	}
	if got := DefaultName("height", 30); got != "fourier_waves_height_30frames" {
		t.Errorf("unexpected default name %q", got)
	}
}

func TestFolder_WriteFrame(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "seq")

	w, err := Create(KindFolder, dir, Metadata{Mode: "normal"})
	if err != nil {
		t.Fatalf("Failed to create folder writer: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.WriteFrame(i, []byte{byte(i)}); err != nil {
			t.Fatalf("Failed to write frame %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "wave_normal_0002.png"))
	if err != nil {
		t.Fatalf("Frame file missing: %v", err)
	}
	if !bytes.Equal(data, []byte{2}) {
		t.Errorf("unexpected frame content %v", data)
	}
}

func TestZip_WriteFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.zip")

	w, err := Create(KindZip, path, Metadata{Mode: "height"})
	if err != nil {
		t.Fatalf("Failed to create zip writer: %v", err)
	}
	// Out of order on purpose.
	for _, i := range []int{2, 0, 1} {
		if err := w.WriteFrame(i, []byte("frame-"+string(rune('a'+i)))); err != nil {
			t.Fatalf("Failed to write frame %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("Failed to open zip: %v", err)
	}
	defer zr.Close()

	if len(zr.File) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(zr.File))
	}
	found := map[string]string{}
	for _, f := range zr.File {
		if f.Method != zip.Store {
			t.Errorf("entry %s should be stored, got method %d", f.Name, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("Failed to open entry: %v", err)
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		found[f.Name] = string(b)
	}
	if found["wave_height_0001.png"] != "frame-b" {
		t.Errorf("unexpected entries %v", found)
	}
}

func TestCreate_UnknownKind(t *testing.T) {
	if _, err := Create(Kind("tar"), t.TempDir(), Metadata{}); err == nil {
		t.Error("Expected error for unknown kind")
	}
}

func TestPack_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq"+PackExt)

	meta := Metadata{
		Name:         "Test",
		Mode:         "normal",
		Convention:   "directx",
		Size:         64,
		Frames:       40,
		LoopDuration: 2500 * time.Millisecond,
		ExportID:     "3f1c2b7e-0000-4000-8000-000000000000",
		Preset:       `{"version":"1.1"}`,
	}

	w, err := NewPack(path, meta)
	if err != nil {
		t.Fatalf("Failed to create pack: %v", err)
	}

	// More frames than a batch so at least one automatic flush happens.
	for i := meta.Frames - 1; i >= 0; i-- {
		if err := w.WriteFrame(i, bytes.Repeat([]byte{byte(i)}, 100)); err != nil {
			t.Fatalf("Failed to write frame %d: %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close pack: %v", err)
	}

	r, err := OpenPack(path)
	if err != nil {
		t.Fatalf("Failed to open pack: %v", err)
	}
	defer r.Close()

	got, err := r.Metadata()
	if err != nil {
		t.Fatalf("Failed to read metadata: %v", err)
	}
	if got != meta {
		t.Errorf("metadata mismatch:\n got %+v\nwant %+v", got, meta)
	}

	indices, err := r.Indices()
	if err != nil {
		t.Fatalf("Failed to list frames: %v", err)
	}
	if len(indices) != meta.Frames || indices[0] != 0 || indices[len(indices)-1] != meta.Frames-1 {
		t.Errorf("unexpected indices %v", indices)
	}

	data, err := r.Frame(17)
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	if !bytes.Equal(data, bytes.Repeat([]byte{17}, 100)) {
		t.Error("frame data mismatch")
	}

	if _, err := r.Frame(99); err == nil {
		t.Error("Expected error for missing frame")
	}
}

func TestPack_ReplacesFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq"+PackExt)

	w, err := NewPack(path, Metadata{Mode: "height"})
	if err != nil {
		t.Fatalf("Failed to create pack: %v", err)
	}
	if err := w.WriteFrame(0, []byte("old")); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteFrame(0, []byte("new")); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := OpenPack(path)
	if err != nil {
		t.Fatalf("Failed to open pack: %v", err)
	}
	defer r.Close()

	data, err := r.Frame(0)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("Expected replaced frame, got %q", data)
	}
}

func TestPack_ReopenClearsFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq"+PackExt)

	write := func(frames int) {
		t.Helper()
		w, err := NewPack(path, Metadata{Mode: "normal", Frames: frames})
		if err != nil {
			t.Fatalf("Failed to create pack: %v", err)
		}
		for i := 0; i < frames; i++ {
			if err := w.WriteFrame(i, []byte{byte(frames), byte(i)}); err != nil {
				t.Fatalf("Failed to write frame %d: %v", i, err)
			}
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Failed to close pack: %v", err)
		}
	}
	write(5)
	write(2)

	r, err := OpenPack(path)
	if err != nil {
		t.Fatalf("Failed to open pack: %v", err)
	}
	defer r.Close()

	indices, err := r.Indices()
	if err != nil {
		t.Fatalf("Failed to list frames: %v", err)
	}
	if len(indices) != 2 || indices[0] != 0 || indices[1] != 1 {
		t.Errorf("Expected frames [0 1], got %v", indices)
	}
	meta, err := r.Metadata()
	if err != nil {
		t.Fatal(err)
	}
	if meta.Frames != 2 {
		t.Errorf("Expected 2 frames in metadata, got %d", meta.Frames)
	}
	data, err := r.Frame(1)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{2, 1}) {
		t.Errorf("Expected frame from second export, got %v", data)
	}
}

func TestFolder_Abort(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "seq")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	keep := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(keep, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Create(KindFolder, dir, Metadata{Mode: "normal"})
	if err != nil {
		t.Fatalf("Failed to create folder writer: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := w.WriteFrame(i, []byte{byte(i)}); err != nil {
			t.Fatalf("Failed to write frame %d: %v", i, err)
		}
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "notes.txt" {
		t.Errorf("Expected only unrelated files to remain, got %v", entries)
	}
}

func TestZip_Abort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.zip")

	w, err := Create(KindZip, path, Metadata{Mode: "height"})
	if err != nil {
		t.Fatalf("Failed to create zip writer: %v", err)
	}
	if err := w.WriteFrame(0, []byte("frame")); err != nil {
		t.Fatal(err)
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected zip to be removed, stat error %v", err)
	}
}

func TestPack_Abort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seq"+PackExt)

	w, err := Create(KindPack, path, Metadata{Mode: "normal"})
	if err != nil {
		t.Fatalf("Failed to create pack: %v", err)
	}
	for i := 0; i < DefaultBatchSize+1; i++ {
		if err := w.WriteFrame(i, []byte{byte(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}
	for _, name := range []string{path, path + "-wal", path + "-shm"} {
		if _, err := os.Stat(name); !os.IsNotExist(err) {
			t.Errorf("Expected %s to be removed, stat error %v", filepath.Base(name), err)
		}
	}
}

func TestOpenPack_NotAPack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	w, err := NewPack(path, Metadata{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.db.Exec("DROP TABLE frames"); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenPack(path); err == nil {
		t.Error("Expected error when frames table is missing")
	}
}

func TestMetadata_ToMap(t *testing.T) {
	m := Metadata{Name: "x", Size: 256}.ToMap()
	if m["name"] != "x" || m["size"] != "256" || m["format"] != "png" {
		t.Errorf("unexpected map %v", m)
	}
	if _, ok := m["frames"]; ok {
		t.Error("zero frame count should be omitted")
	}
}
