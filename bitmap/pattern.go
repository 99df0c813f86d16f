package bitmap

import "image"

// DefaultSquareSize is the edge length in pixels of each checkerboard square.
const DefaultSquareSize = 32

// Checkerboard returns a display sized test pattern of alternating black and
// white squares, size pixels across. The top-left square is white.
func Checkerboard(size int) image.Image {
	if size <= 0 {
		size = DefaultSquareSize
	}

	m := image.NewPaletted(image.Rect(0, 0, Width, Height), Palette)
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			if (x/size+y/size)%2 == 0 {
				m.SetColorIndex(x, y, 1)
			}
		}
	}
	return m
}
