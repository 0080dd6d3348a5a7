package render

import "image"

// Wrap returns a size×size image sampled from src with wrap-around,
// starting at (offsetX, offsetY). Wrapping a tileable frame by half its size
// moves its borders to the middle of the image, where a seam would show.
func Wrap(src image.Image, size int, offsetX, offsetY int) *image.NRGBA {
	if src == nil || size <= 0 {
		return nil
	}

	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	if width == 0 || height == 0 {
		return dst
	}

	mod := func(a, b int) int {
		r := a % b
		if r < 0 {
			r += b
		}
		return r
	}

	for y := 0; y < size; y++ {
		sy := bounds.Min.Y + mod(offsetY+y, height)
		for x := 0; x < size; x++ {
			sx := bounds.Min.X + mod(offsetX+x, width)
			dst.Set(x, y, src.At(sx, sy))
		}
	}

	return dst
}

// SeamCheck wraps img by half its size in both directions.
func SeamCheck(img image.Image) *image.NRGBA {
	b := img.Bounds()
	return Wrap(img, b.Dx(), b.Dx()/2, b.Dy()/2)
}
