package bitmap

import (
	"encoding/binary"
	"errors"
)

var (
	// ErrNotBitmap is returned when the data is too short or lacks the
	// bitmap signature
	ErrNotBitmap = errors.New("bitmap: not a bitmap")
	// ErrSizeMismatch is returned when the dimensions, color depth, pixel
	// data size or color count don't match the display
	ErrSizeMismatch = errors.New("bitmap: dimensions or format mismatch (expected 800x480, 1bpp, 48000 bytes)")
	// ErrInvalidDataOffset is returned when the pixel data offset leaves no
	// room for a color table
	ErrInvalidDataOffset = errors.New("bitmap: invalid data offset (no color table found)")
	// ErrColorScheme is returned when the color table matches neither the
	// standard nor the reversed scheme
	ErrColorScheme = errors.New("bitmap: unrecognized color scheme in color table")
)

// Header holds the bitmap header fields that the display cares about.
type Header struct {
	Width        int32
	Height       int32
	BitsPerPixel uint16
	Compression  uint32
	ImageSize    uint32
	// Colors is the color table entry count, defaulted to 1 << BitsPerPixel
	// when stored as zero
	Colors     uint32
	DataOffset uint32
}

// Info is the result of inspecting a bitmap.
type Info struct {
	Header     Header
	ColorTable []ColorTableEntry
	Polarity   Polarity
}

func (h Header) matchesDisplay() bool {
	return h.Width == Width && h.Height == Height && h.BitsPerPixel == BitsPerPixel && h.ImageSize == ImageSize && h.Colors == Colors
}

// Inspect parses b and checks it against the display constraints. Each check
// is a hard gate and the first failure is returned. When the error is
// ErrSizeMismatch, ErrInvalidDataOffset or ErrColorScheme the returned Info
// is non-nil and holds everything parsed up to the failing check.
func Inspect(b []byte) (*Info, error) {
	if len(b) < minimumSize {
		return nil, ErrNotBitmap
	}

	if b[offsetSignature] != signature[0] || b[offsetSignature+1] != signature[1] {
		return nil, ErrNotBitmap
	}

	le := binary.LittleEndian

	info := new(Info)
	info.Header = Header{
		Width:        int32(le.Uint32(b[offsetWidth:])),
		Height:       int32(le.Uint32(b[offsetHeight:])),
		BitsPerPixel: le.Uint16(b[offsetBitCount:]),
		Compression:  le.Uint32(b[offsetCompression:]),
		ImageSize:    le.Uint32(b[offsetImageSize:]),
		Colors:       le.Uint32(b[offsetColorsUsed:]),
	}
	if info.Header.Colors == 0 {
		// A shift of 32 or more yields zero which fails the size check below
		info.Header.Colors = 1 << info.Header.BitsPerPixel
	}

	if !info.Header.matchesDisplay() {
		return info, ErrSizeMismatch
	}

	info.Header.DataOffset = le.Uint32(b[offsetDataOffset:])
	if info.Header.DataOffset <= colorTableOffset {
		return info, ErrInvalidDataOffset
	}

	// The color count is known to be two at this point and the buffer is at
	// least minimumSize bytes, so the whole table is present
	info.ColorTable = make([]ColorTableEntry, info.Header.Colors)
	for i := range info.ColorTable {
		copy(info.ColorTable[i][:], b[colorTableOffset+i*colorEntrySize:])
	}

	// Compared as raw on-disk bytes, the same as the firmware
	switch [Colors]ColorTableEntry{info.ColorTable[0], info.ColorTable[1]} {
	case Standard.colorTable():
		info.Polarity = Standard
	case Reversed.colorTable():
		info.Polarity = Reversed
	default:
		return info, ErrColorScheme
	}

	return info, nil
}

// Validate checks b is a bitmap the display can render and returns its
// polarity.
func Validate(b []byte) (Polarity, error) {
	info, err := Inspect(b)
	if err != nil {
		return Standard, err
	}
	return info.Polarity, nil
}
