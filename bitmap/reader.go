package bitmap

import (
	"errors"
	"image"
	"io"
)

var errNotEnough = errors.New("bitmap: not enough image data")

type decoder struct {
	info  *Info
	image *image.Paletted
}

func (d *decoder) decode(b []byte, configOnly bool) error {
	info, err := Inspect(b)
	if err != nil {
		return err
	}
	d.info = info

	start := int(info.Header.DataOffset)
	if start+ImageSize > len(b) || start+ImageSize < start {
		return errNotEnough
	}

	if configOnly {
		return nil
	}

	d.image = image.NewPaletted(image.Rect(0, 0, Width, Height), Palette)

	// Palette index of the color stored as a set bit
	set := uint8(1)
	if info.Polarity == Reversed {
		set = 0
	}

	pixels := b[start : start+ImageSize]
	for y := 0; y < Height; y++ {
		row := pixels[(Height-1-y)*rowSize:]
		for x := 0; x < Width; x++ {
			if row[x>>3]&(0x80>>(x&7)) != 0 {
				d.image.SetColorIndex(x, y, set)
			} else {
				d.image.SetColorIndex(x, y, 1-set)
			}
		}
	}

	return nil
}

// Decode reads a display bitmap from r and returns it as an image.Image using
// Palette regardless of the polarity of the bitmap.
func Decode(r io.Reader) (image.Image, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var d decoder
	if err := d.decode(b, false); err != nil {
		return nil, err
	}
	return d.image, nil
}

// DecodeConfig returns the color model and dimensions of a display bitmap
// without decoding the pixel data.
func DecodeConfig(r io.Reader) (image.Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return image.Config{}, err
	}

	var d decoder
	if err := d.decode(b, true); err != nil {
		return image.Config{}, err
	}
	return image.Config{
		ColorModel: Palette,
		Width:      Width,
		Height:     Height,
	}, nil
}
