package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/fourierwaves/internal/archive"
	"github.com/MeKo-Tech/fourierwaves/internal/preset"
	"github.com/MeKo-Tech/fourierwaves/internal/render"
	"github.com/MeKo-Tech/fourierwaves/internal/wave"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession() preset.Session {
	s := preset.Default()
	s.ExportRes = 16
	s.ExportFrames = 6
	s.Config.TilingPreview = 3
	return s
}

func TestRun_Folder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")

	summary, err := Run(context.Background(), testSession(), Options{Output: dir, Workers: 3}, nil)
	require.NoError(t, err)

	assert.Equal(t, archive.KindFolder, summary.Kind)
	assert.Equal(t, 6, summary.Frames)
	assert.Equal(t, 16, summary.Size)
	assert.Len(t, summary.ExportID, 36)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 6)

	data, err := os.ReadFile(filepath.Join(dir, "wave_normal_0003.png"))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
}

func TestRun_FramesMatchDirectRender(t *testing.T) {
	dir := t.TempDir()
	s := testSession()
	s.Mode = wave.ModeHeight

	_, err := Run(context.Background(), s, Options{Output: dir, Workers: 2}, nil)
	require.NoError(t, err)

	// Frame 2 of 6 samples phase 1/3 with tiling preview disabled.
	frame := s.Frame().ForExport()
	want, err := (&render.Renderer{}).RenderPNG(context.Background(), frame, 16, 2.0/6.0, "")
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "wave_height_0002.png"))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRun_ZipInFrameOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.zip")

	_, err := Run(context.Background(), testSession(), Options{Output: path, Workers: 4, Frames: 5}, nil)
	require.NoError(t, err)

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	require.Len(t, zr.File, 5)
	for i, f := range zr.File {
		assert.Equal(t, archive.FrameName("normal", i), f.Name)
	}
}

func TestRun_PackCarriesMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop"+archive.PackExt)
	s := testSession()
	s.Name = "Pack test"
	s.Config.Convention = wave.ConventionDirectX

	summary, err := Run(context.Background(), s, Options{Output: path, Size: 8, Frames: 4}, nil)
	require.NoError(t, err)

	r, err := archive.OpenPack(path)
	require.NoError(t, err)
	defer r.Close()

	meta, err := r.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Pack test", meta.Name)
	assert.Equal(t, "normal", meta.Mode)
	assert.Equal(t, "directx", meta.Convention)
	assert.Equal(t, 8, meta.Size)
	assert.Equal(t, 4, meta.Frames)
	assert.Equal(t, s.LoopDuration, meta.LoopDuration)
	assert.Equal(t, summary.ExportID, meta.ExportID)

	restored, err := preset.DecodeBytes([]byte(meta.Preset), preset.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, s.Normalized(), restored)

	indices, err := r.Indices()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, indices)
}

func TestRun_ContactSheet(t *testing.T) {
	dir := t.TempDir()
	sheetPath := filepath.Join(dir, "sheet", "overview.png")

	_, err := Run(context.Background(), testSession(), Options{
		Output:       filepath.Join(dir, "frames"),
		ContactSheet: sheetPath,
		SheetColumns: 3,
		ThumbSize:    8,
	}, nil)
	require.NoError(t, err)

	f, err := os.Open(sheetPath)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)

	// 6 frames in 3 columns make 2 rows of 8px thumbnails plus labels.
	assert.Equal(t, 3*(8+sheetPadding)+sheetPadding, cfg.Width)
	assert.Equal(t, 2*(8+labelHeight+sheetPadding)+sheetPadding, cfg.Height)
}

func TestRun_InvalidCompression(t *testing.T) {
	_, err := Run(context.Background(), testSession(), Options{Output: t.TempDir(), Compression: "max"}, nil)
	assert.ErrorIs(t, err, render.ErrInvalidCompression)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, testSession(), Options{Output: t.TempDir()}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_CancelledRemovesOutput(t *testing.T) {
	for _, name := range []string{"frames.zip", "frames" + archive.PackExt} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			output := filepath.Join(t.TempDir(), name)
			_, err := Run(ctx, testSession(), Options{Output: output}, nil)
			require.ErrorIs(t, err, context.Canceled)

			assert.NoFileExists(t, output)
			assert.NoFileExists(t, output+"-wal")
		})
	}
}

func TestReorderBuffer(t *testing.T) {
	var order []int
	b := newReorderBuffer(func(index int, data []byte) error {
		order = append(order, index)
		return nil
	})

	for _, i := range []int{2, 0, 3, 1, 4} {
		require.NoError(t, b.push(i, nil))
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Empty(t, b.pending)
}

func TestReorderBuffer_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	b := newReorderBuffer(func(index int, data []byte) error {
		if index == 1 {
			return boom
		}
		return nil
	})

	require.NoError(t, b.push(1, nil))
	assert.ErrorIs(t, b.push(0, nil), boom)
	assert.Equal(t, 1, b.next)
}

func TestContactSheet_Labels(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 32, 32))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, frame))

	s := newContactSheet(1, 0, 0, 32)
	require.NoError(t, s.add(0, buf.Bytes()))

	// The label row must contain some bright pixels from the text.
	var bright int
	b := s.img.Bounds()
	for y := sheetPadding + 32; y < b.Max.Y; y++ {
		for x := 0; x < b.Max.X; x++ {
			if s.img.NRGBAAt(x, y).R > 200 {
				bright++
			}
		}
	}
	assert.Positive(t, bright)

	err := s.add(1, []byte("not a png"))
	assert.Error(t, err)
}
