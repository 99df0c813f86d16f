package trmnl

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bodgit/trmnl/bitmap"
	"github.com/bodgit/trmnl/crypt"
	"github.com/bodgit/trmnl/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKey   = bytes.Repeat([]byte{0x42}, crypt.KeySize)
	testTime  = time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	discarder = log.New(io.Discard, "", 0)
)

func newTest(t *testing.T, withDB bool) *TRMNL {
	t.Helper()
	var db *ScreenDB
	if withDB {
		var err error
		db, err = NewScreenDB(filepath.Join(t.TempDir(), "trmnl.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
	}
	m := New(db, discarder)
	m.now = func() time.Time { return testTime }
	return m
}

func writeBitmap(t *testing.T, file string, size int, p bitmap.Polarity) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, bitmap.Encode(buf, bitmap.Checkerboard(size), &bitmap.Options{Polarity: p}))
	require.NoError(t, os.WriteFile(file, buf.Bytes(), 0644))
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	m := newTest(t, false)
	dir := t.TempDir()

	file := filepath.Join(dir, "reversed.bmp")
	writeBitmap(t, file, 16, bitmap.Reversed)

	p, err := m.Validate(file)
	require.NoError(t, err)
	assert.Equal(t, bitmap.Reversed, p)

	bad := filepath.Join(dir, "bad.bmp")
	require.NoError(t, os.WriteFile(bad, []byte("PNG"), 0644))
	_, err = m.Validate(bad)
	assert.ErrorIs(t, err, bitmap.ErrNotBitmap)

	_, err = m.Validate(filepath.Join(dir, "missing.bmp"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateLogs(t *testing.T) {
	buf := new(bytes.Buffer)
	m := New(nil, log.New(buf, "", 0))

	file := filepath.Join(t.TempDir(), "screen.bmp")
	writeBitmap(t, file, 32, bitmap.Standard)

	_, err := m.Validate(file)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "width 800, height 480, bits per pixel 1")
	assert.Contains(t, buf.String(), "color 1: ff ff ff 00")
	assert.Contains(t, buf.String(), "color scheme standard")
}

func TestEncryptDecrypt(t *testing.T) {
	m := newTest(t, false)
	dir := t.TempDir()

	input := filepath.Join(dir, "screen.bmp")
	b := writeBitmap(t, input, 32, bitmap.Standard)

	enc := filepath.Join(dir, "screen.enc")
	require.NoError(t, m.Encrypt(testKey, input, enc))

	info, err := os.Stat(enc)
	require.NoError(t, err)
	assert.Equal(t, int64(48080), info.Size())

	dec := filepath.Join(dir, "screen.dec.bmp")
	require.NoError(t, m.Decrypt(testKey, enc, dec))

	got, err := os.ReadFile(dec)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestDecryptFailureLeavesNothing(t *testing.T) {
	m := newTest(t, false)
	dir := t.TempDir()

	input := filepath.Join(dir, "short.enc")
	require.NoError(t, os.WriteFile(input, make([]byte, 16), 0644))

	output := filepath.Join(dir, "short.bmp")
	assert.ErrorIs(t, m.Decrypt(testKey, input, output), crypt.ErrInputTooShort)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBuildManifest(t *testing.T) {
	m := newTest(t, false)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.enc"), make([]byte, 48), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.enc"), make([]byte, 32), 0644))

	output := filepath.Join(t.TempDir(), "manifest.enc")
	require.NoError(t, m.BuildManifest(testKey, dir, output, 900, true))

	got, err := m.Inspect(testKey, output)
	require.NoError(t, err)
	assert.Equal(t, &manifest.Manifest{
		Version:     1,
		RefreshRate: 900,
		UpdatedAt:   "2025-06-01T08:30:00Z",
		Screens: []manifest.Screen{
			{Name: "a", Filename: "a.enc", Size: 32},
			{Name: "b", Filename: "b.enc", Size: 48},
		},
	}, got)

	enc, err := os.ReadFile(output)
	require.NoError(t, err)
	plaintext, err := crypt.Decrypt(testKey, enc)
	require.NoError(t, err)

	debug, err := os.ReadFile(output + manifest.DebugSuffix)
	require.NoError(t, err)
	assert.Equal(t, plaintext, debug)
}

func TestBuildManifestEmpty(t *testing.T) {
	m := newTest(t, false)
	output := filepath.Join(t.TempDir(), "manifest.enc")

	assert.ErrorIs(t, m.BuildManifest(testKey, t.TempDir(), output, 0, true), manifest.ErrEmptyDirectory)

	_, err := os.Stat(output)
	assert.ErrorIs(t, err, os.ErrNotExist)
	_, err = os.Stat(output + manifest.DebugSuffix)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildManifestDebugFailure(t *testing.T) {
	m := newTest(t, false)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.enc"), make([]byte, 32), 0644))

	output := filepath.Join(t.TempDir(), "manifest.enc")
	// A directory in the way of the debug copy
	require.NoError(t, os.Mkdir(output+manifest.DebugSuffix, 0755))

	assert.Error(t, m.BuildManifest(testKey, dir, output, 0, true))

	_, err := os.Stat(output)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuildManifestTooManyScreens(t *testing.T) {
	buf := new(bytes.Buffer)
	m := New(nil, log.New(buf, "", 0))

	dir := t.TempDir()
	for i := 0; i <= manifest.MaxScreens; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("s%02d.enc", i)), make([]byte, 32), 0644))
	}

	require.NoError(t, m.BuildManifest(testKey, dir, filepath.Join(t.TempDir(), "manifest.enc"), 0, false))
	assert.Contains(t, buf.String(), "17 screens")
}

func TestPublish(t *testing.T) {
	m := newTest(t, true)
	src, dir := t.TempDir(), t.TempDir()

	file := filepath.Join(src, "weather.bmp")
	b := writeBitmap(t, file, 32, bitmap.Reversed)

	require.NoError(t, m.Publish(testKey, file, dir))

	output := filepath.Join(dir, "weather.enc")
	enc, err := os.ReadFile(output)
	require.NoError(t, err)

	plaintext, err := crypt.Decrypt(testKey, enc)
	require.NoError(t, err)
	assert.Equal(t, b, plaintext)

	r, err := m.db.FindScreen("weather")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, Record{
		Name:          "weather",
		Digest:        mustDigest(t, testKey, b),
		Polarity:      bitmap.Reversed,
		Size:          48062,
		EncryptedSize: 48080,
		PublishedAt:   testTime,
	}, Record{
		Name:          r.Name,
		Digest:        r.Digest,
		Polarity:      r.Polarity,
		Size:          r.Size,
		EncryptedSize: r.EncryptedSize,
		PublishedAt:   r.PublishedAt.UTC(),
	})

	// Unchanged bitmaps keep their existing ciphertext
	require.NoError(t, m.Publish(testKey, file, dir))
	again, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, enc, again)

	// Unless the screen has gone missing
	require.NoError(t, os.Remove(output))
	require.NoError(t, m.Publish(testKey, file, dir))
	_, err = os.Stat(output)
	assert.NoError(t, err)

	// Changed bitmaps are republished
	changed := writeBitmap(t, file, 16, bitmap.Reversed)
	require.NoError(t, m.Publish(testKey, file, dir))

	enc, err = os.ReadFile(output)
	require.NoError(t, err)
	plaintext, err = crypt.Decrypt(testKey, enc)
	require.NoError(t, err)
	assert.Equal(t, changed, plaintext)

	r, err = m.db.FindScreen("weather")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, mustDigest(t, testKey, changed), r.Digest)
}

func TestPublishNewKey(t *testing.T) {
	m := newTest(t, true)
	src, dir := t.TempDir(), t.TempDir()

	file := filepath.Join(src, "weather.bmp")
	b := writeBitmap(t, file, 32, bitmap.Standard)

	require.NoError(t, m.Publish(testKey, file, dir))

	newKey := bytes.Repeat([]byte{0x24}, crypt.KeySize)
	require.NoError(t, m.Publish(newKey, file, dir))

	enc, err := os.ReadFile(filepath.Join(dir, "weather.enc"))
	require.NoError(t, err)

	plaintext, err := crypt.Decrypt(newKey, enc)
	require.NoError(t, err)
	assert.Equal(t, b, plaintext)

	r, err := m.db.FindScreen("weather")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, mustDigest(t, newKey, b), r.Digest)
}

func TestPublishInvalid(t *testing.T) {
	m := newTest(t, true)
	src, dir := t.TempDir(), t.TempDir()

	file := filepath.Join(src, "bad.bmp")
	require.NoError(t, os.WriteFile(file, make([]byte, 100), 0644))

	assert.ErrorIs(t, m.Publish(testKey, file, dir), bitmap.ErrNotBitmap)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPublishAll(t *testing.T) {
	m := newTest(t, true)
	src, dir := t.TempDir(), t.TempDir()

	for _, name := range []string{"a.bmp", "b.BMP", "c.bmp", ".hidden.bmp"} {
		writeBitmap(t, filepath.Join(src, name), 32, bitmap.Standard)
	}
	require.NoError(t, os.WriteFile(filepath.Join(src, "bad.bmp"), []byte("BM"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("notes"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(src, "nested"), 0755))
	writeBitmap(t, filepath.Join(src, "nested", "d.bmp"), 32, bitmap.Standard)

	require.NoError(t, m.PublishAll(testKey, src, dir))

	screens, err := manifest.Scan(dir)
	require.NoError(t, err)

	var names []string
	for _, s := range screens {
		names = append(names, s.Filename)
	}
	assert.Equal(t, []string{"a.enc", "b.enc", "c.enc"}, names)

	records, err := m.db.Screens()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "a", records[0].Name)
	assert.Equal(t, "c", records[2].Name)
}

func TestPublishAllMissing(t *testing.T) {
	m := newTest(t, true)
	assert.ErrorIs(t, m.PublishAll(testKey, filepath.Join(t.TempDir(), "missing"), t.TempDir()), os.ErrNotExist)
}

func TestPublishAllMissingDestination(t *testing.T) {
	m := newTest(t, false)
	src := t.TempDir()
	writeBitmap(t, filepath.Join(src, "a.bmp"), 32, bitmap.Standard)

	assert.Error(t, m.PublishAll(testKey, src, filepath.Join(t.TempDir(), "missing")))
}

func TestWritePattern(t *testing.T) {
	m := newTest(t, false)
	output := filepath.Join(t.TempDir(), "pattern.bmp")

	require.NoError(t, m.WritePattern(output))

	p, err := m.Validate(output)
	require.NoError(t, err)
	assert.Equal(t, bitmap.Standard, p)
}

func TestConvert(t *testing.T) {
	m := newTest(t, false)
	dir := t.TempDir()

	src := image.NewGray(image.Rect(0, 0, bitmap.Width, bitmap.Height))
	for y := 0; y < bitmap.Height; y++ {
		for x := 0; x < bitmap.Width; x++ {
			if x < bitmap.Width/2 {
				src.SetGray(x, y, color.Gray{Y: 0x10})
			} else {
				src.SetGray(x, y, color.Gray{Y: 0xf0})
			}
		}
	}

	input := filepath.Join(dir, "input.png")
	f, err := os.Create(input)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	output := filepath.Join(dir, "output.bmp")
	require.NoError(t, m.Convert(input, output, bitmap.Reversed))

	p, err := m.Validate(output)
	require.NoError(t, err)
	assert.Equal(t, bitmap.Reversed, p)
}

func TestConvertNotImage(t *testing.T) {
	m := newTest(t, false)
	dir := t.TempDir()

	input := filepath.Join(dir, "input.png")
	require.NoError(t, os.WriteFile(input, []byte("not an image"), 0644))

	assert.ErrorIs(t, m.Convert(input, filepath.Join(dir, "output.bmp"), bitmap.Standard), image.ErrFormat)
}

func TestLoadKey(t *testing.T) {
	hex := crypt.FormatKey(testKey)

	b, err := LoadKey(hex, "")
	require.NoError(t, err)
	assert.Equal(t, testKey, b.Bytes())
	require.NoError(t, b.Close())

	file := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(file, []byte(hex+"\n"), 0600))

	b, err = LoadKey("", file)
	require.NoError(t, err)
	assert.Equal(t, testKey, b.Bytes())
	require.NoError(t, b.Close())

	_, err = LoadKey("", "")
	assert.Error(t, err)

	_, err = LoadKey(hex[:63], "")
	assert.ErrorIs(t, err, crypt.ErrKeyLength)
}
