package trmnl

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"os"

	"github.com/bodgit/trmnl/bitmap"
)

func (t *TRMNL) writeBitmap(output string, m image.Image, p bitmap.Polarity) error {
	buf := new(bytes.Buffer)
	if err := bitmap.Encode(buf, m, &bitmap.Options{Polarity: p}); err != nil {
		return err
	}

	if err := writeFile(output, buf.Bytes(), 0644); err != nil {
		return err
	}
	t.logger.Printf("Wrote %s bitmap (%d bytes) to %s\n", p, buf.Len(), output)

	return nil
}

// WritePattern writes a checkerboard test pattern to output.
func (t *TRMNL) WritePattern(output string) error {
	return t.writeBitmap(output, bitmap.Checkerboard(bitmap.DefaultSquareSize), bitmap.Standard)
}

// Convert reads the GIF, JPEG or PNG image in input, reduces it to black and
// white and writes it to output as a bitmap the display can render.
func (t *TRMNL) Convert(input, output string, p bitmap.Polarity) error {
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	m, format, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", input, err)
	}
	t.logger.Printf("Read %s image %s from %s\n", format, m.Bounds().Size(), input)

	return t.writeBitmap(output, m, p)
}
