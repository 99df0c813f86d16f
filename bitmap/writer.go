package bitmap

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"io"

	"github.com/ericpauley/go-quantize/quantize"
)

var errWrongSize = errors.New("bitmap: image is wrong size")

type fileHeader struct {
	Signature  [2]byte
	FileSize   uint32
	Reserved1  uint16
	Reserved2  uint16
	DataOffset uint32
}

type infoHeader struct {
	HeaderSize      uint32
	Width           int32
	Height          int32
	Planes          uint16
	BitsPerPixel    uint16
	Compression     uint32
	ImageSize       uint32
	XPixelsPerMeter int32
	YPixelsPerMeter int32
	ColorsUsed      uint32
	ColorsImportant uint32
}

// Options are the encoding parameters.
type Options struct {
	Polarity Polarity
}

// Palette is the two color palette used by images returned from Decode and
// Checkerboard, black then white.
var Palette = color.Palette{color.Black, color.White}

// luminance returns the 8-bit gray value of c
func luminance(c color.Color) uint8 {
	return color.GrayModel.Convert(c).(color.Gray).Y
}

// Map each entry in p to black (false) or white (true). With two distinct
// entries the darker one becomes black, otherwise a mid-gray threshold is
// used.
func whiteEntries(p color.Palette) []bool {
	white := make([]bool, len(p))
	if len(p) == 2 && luminance(p[0]) != luminance(p[1]) {
		white[0] = luminance(p[0]) > luminance(p[1])
		white[1] = !white[0]
		return white
	}
	for i, c := range p {
		white[i] = luminance(c) >= 0x80
	}
	return white
}

// Reduce m to a two color paletted image, dithering if necessary
func monochrome(m image.Image) *image.Paletted {
	b := m.Bounds()

	if pm, ok := m.(*image.Paletted); ok && len(pm.Palette) <= Colors {
		return pm
	}

	q := quantize.MedianCutQuantizer{}
	p := q.Quantize(make(color.Palette, 0, Colors), m)
	// A single color image only yields a single entry
	for len(p) < Colors {
		p = append(p, Palette[len(p)])
	}

	pm := image.NewPaletted(b, p)
	draw.FloydSteinberg.Draw(pm, b, m, b.Min)

	return pm
}

type encoder struct {
	w io.Writer
}

func (e *encoder) writeHeaders(p Polarity) error {
	dataOffset := uint32(colorTableOffset + Colors*colorEntrySize)

	fh := fileHeader{
		Signature:  signature,
		FileSize:   dataOffset + ImageSize,
		DataOffset: dataOffset,
	}
	if err := binary.Write(e.w, binary.LittleEndian, &fh); err != nil {
		return err
	}

	ih := infoHeader{
		HeaderSize:      infoHeaderSize,
		Width:           Width,
		Height:          Height,
		Planes:          1,
		BitsPerPixel:    BitsPerPixel,
		ImageSize:       ImageSize,
		XPixelsPerMeter: pixelsPerMeter,
		YPixelsPerMeter: pixelsPerMeter,
		ColorsUsed:      Colors,
		ColorsImportant: Colors,
	}
	if err := binary.Write(e.w, binary.LittleEndian, &ih); err != nil {
		return err
	}

	for _, c := range p.colorTable() {
		if _, err := e.w.Write(c[:]); err != nil {
			return err
		}
	}

	return nil
}

func (e *encoder) encode(m *image.Paletted, p Polarity) error {
	if err := e.writeHeaders(p); err != nil {
		return err
	}

	white := whiteEntries(m.Palette)

	// With the standard color table a set bit is white
	set := p == Standard

	var row [rowSize]byte
	for y := Height - 1; y >= 0; y-- {
		for i := range row {
			row[i] = 0
		}
		for x := 0; x < Width; x++ {
			i := int(m.ColorIndexAt(x, y))
			if (i < len(white) && white[i]) == set {
				row[x>>3] |= 0x80 >> (x & 7)
			}
		}
		if _, err := e.w.Write(row[:]); err != nil {
			return err
		}
	}

	return nil
}

// Encode writes the Image m to w as a display bitmap. Images with more than
// two colors are quantized and dithered. If o is nil the standard polarity is
// used.
func Encode(w io.Writer, m image.Image, o *Options) error {
	b := m.Bounds()
	if b.Dx() != Width || b.Dy() != Height {
		return errWrongSize
	}

	var p Polarity
	if o != nil {
		p = o.Polarity
	}

	pm := monochrome(m)

	// Adjust image so that top-left corner is at (0, 0)
	if pm.Rect.Min != (image.Point{}) {
		dup := *pm
		dup.Rect = dup.Rect.Sub(dup.Rect.Min)
		pm = &dup
	}

	e := encoder{w: w}

	return e.encode(pm, p)
}
