/*
Package bitmap implements the 1 bit per pixel bitmap format accepted by the
TRMNL e-ink display.

The display only accepts an uncompressed Windows bitmap of exactly 800 by 480
pixels with a two entry color table. Pixel rows are stored bottom-up, each row
is 100 bytes so no row padding is required, and the pixel data is therefore
48000 bytes long. The two color table entries decide the polarity of the
image; either index 0 is black and index 1 is white (standard) or the other
way around (reversed).
*/
package bitmap

const (
	// Width is the only accepted bitmap width in pixels
	Width = 800
	// Height is the only accepted bitmap height in pixels
	Height = 480
	// BitsPerPixel is the only accepted color depth
	BitsPerPixel = 1
	// ImageSize is the size in bytes of the pixel data
	ImageSize = rowSize * Height
	// Colors is the number of entries in the color table
	Colors = 1 << BitsPerPixel

	rowSize = Width / 8

	fileHeaderSize = 14
	infoHeaderSize = 40
	// Color table always starts immediately after the two headers
	colorTableOffset = fileHeaderSize + infoHeaderSize
	colorEntrySize   = 4
	// Smallest buffer that can hold both headers and a two entry color table
	minimumSize = colorTableOffset + Colors*colorEntrySize

	pixelsPerMeter = 3780
)

const (
	offsetSignature   = 0
	offsetDataOffset  = 10
	offsetWidth       = 18
	offsetHeight      = 22
	offsetBitCount    = 28
	offsetCompression = 30
	offsetImageSize   = 34
	offsetColorsUsed  = 46
)

var signature = [2]byte{'B', 'M'}

// ColorTableEntry is a single color table entry exactly as stored in the
// file. The bytes are never interpreted as channels.
type ColorTableEntry [colorEntrySize]byte

var (
	black = ColorTableEntry{0x00, 0x00, 0x00, 0x00}
	white = ColorTableEntry{0xff, 0xff, 0xff, 0x00}
)

// Polarity describes which color table entry renders as black.
type Polarity int

const (
	// Standard polarity has black at index 0 and white at index 1
	Standard Polarity = iota
	// Reversed polarity has white at index 0 and black at index 1
	Reversed
)

func (p Polarity) String() string {
	switch p {
	case Standard:
		return "standard"
	case Reversed:
		return "reversed"
	default:
		return "unknown"
	}
}

// colorTable returns the two color table entries for the polarity.
func (p Polarity) colorTable() [Colors]ColorTableEntry {
	if p == Reversed {
		return [Colors]ColorTableEntry{white, black}
	}
	return [Colors]ColorTableEntry{black, white}
}
