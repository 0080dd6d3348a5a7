package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/gift"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	defaultThumbSize = 128
	labelHeight      = 16
	sheetPadding     = 4
)

var sheetBackground = color.NRGBA{R: 24, G: 24, B: 28, A: 255}

// contactSheet lays out downscaled frames in a grid, each labelled with its
// frame index.
type contactSheet struct {
	img     *image.NRGBA
	resize  *gift.GIFT
	columns int
	thumb   int
}

func newContactSheet(frames, columns, thumb, size int) *contactSheet {
	if columns <= 0 {
		columns = int(math.Ceil(math.Sqrt(float64(frames))))
	}
	if columns < 1 {
		columns = 1
	}
	if thumb <= 0 {
		thumb = defaultThumbSize
	}
	if thumb > size {
		thumb = size
	}
	rows := (frames + columns - 1) / columns

	cellW := thumb + sheetPadding
	cellH := thumb + labelHeight + sheetPadding
	img := image.NewNRGBA(image.Rect(0, 0, columns*cellW+sheetPadding, rows*cellH+sheetPadding))
	draw.Draw(img, img.Bounds(), image.NewUniform(sheetBackground), image.Point{}, draw.Src)

	return &contactSheet{
		img:     img,
		resize:  gift.New(gift.Resize(thumb, thumb, gift.LanczosResampling)),
		columns: columns,
		thumb:   thumb,
	}
}

// add decodes a frame and draws its thumbnail into the grid.
func (s *contactSheet) add(index int, data []byte) error {
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode frame %d: %w", index, err)
	}

	x := sheetPadding + (index%s.columns)*(s.thumb+sheetPadding)
	y := sheetPadding + (index/s.columns)*(s.thumb+labelHeight+sheetPadding)
	s.resize.DrawAt(s.img, src, image.Pt(x, y), gift.CopyOperator)

	d := &font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x+2, y+s.thumb+labelHeight-4),
	}
	d.DrawString(strconv.Itoa(index))
	return nil
}

func (s *contactSheet) save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create contact sheet directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create contact sheet: %w", err)
	}
	if err := png.Encode(f, s.img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode contact sheet: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write contact sheet: %w", err)
	}
	return nil
}
