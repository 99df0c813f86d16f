/*
Package trmnl is a library for preparing encrypted content for the TRMNL
e-ink display.

Bitmaps are checked against the exact format the display accepts, encrypted
into individual screens and indexed by an encrypted manifest which the
display downloads on every wake.
*/
package trmnl

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bodgit/trmnl/bitmap"
	"github.com/bodgit/trmnl/crypt"
	"github.com/bodgit/trmnl/manifest"
)

// TRMNL performs file level operations on display content.
type TRMNL struct {
	db     *ScreenDB
	logger *log.Logger
	now    func() time.Time
}

// New returns a TRMNL. The db is only needed for publishing and may be nil,
// in which case every bitmap is published unconditionally.
func New(db *ScreenDB, logger *log.Logger) *TRMNL {
	return &TRMNL{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (t *TRMNL) logInfo(file string, info *bitmap.Info) {
	if info == nil {
		return
	}
	h := info.Header
	t.logger.Printf("%s: width %d, height %d, bits per pixel %d, compression %d, image size %d, colors %d, data offset %d\n", file, h.Width, h.Height, h.BitsPerPixel, h.Compression, h.ImageSize, h.Colors, h.DataOffset)
	for i, c := range info.ColorTable {
		t.logger.Printf("%s: color %d: % x\n", file, i, c[:])
	}
}

func (t *TRMNL) validate(file string, b []byte) (bitmap.Polarity, error) {
	info, err := bitmap.Inspect(b)
	t.logInfo(file, info)
	if err != nil {
		t.logger.Printf("%s: %v\n", file, err)
		return bitmap.Standard, err
	}
	t.logger.Printf("%s: color scheme %s\n", file, info.Polarity)
	return info.Polarity, nil
}

// Validate checks the bitmap in file can be rendered by the display and
// returns its polarity.
func (t *TRMNL) Validate(file string) (bitmap.Polarity, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return bitmap.Standard, err
	}
	return t.validate(file, b)
}

// Encrypt encrypts input with key and writes the result to output.
func (t *TRMNL) Encrypt(key []byte, input, output string) error {
	b, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	enc, err := crypt.Encrypt(key, b)
	if err != nil {
		return err
	}

	if err := writeFile(output, enc, 0644); err != nil {
		return err
	}
	t.logger.Printf("Encrypted %d -> %d bytes\n", len(b), len(enc))

	return nil
}

// Decrypt decrypts input with key and writes the result to output.
func (t *TRMNL) Decrypt(key []byte, input, output string) error {
	b, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	dec, err := crypt.Decrypt(key, b)
	if err != nil {
		return err
	}

	if err := writeFile(output, dec, 0644); err != nil {
		return err
	}
	t.logger.Printf("Decrypted %d -> %d bytes\n", len(b), len(dec))

	return nil
}

// BuildManifest writes the encrypted manifest for the screens in dir to
// output. If debug is set the plaintext is also written alongside with
// manifest.DebugSuffix appended to the name, before the manifest itself.
// Nothing is written unless the build succeeds. More than
// manifest.MaxScreens screens is logged, as the display ignores the rest.
func (t *TRMNL) BuildManifest(key []byte, dir, output string, refreshRate int, debug bool) error {
	var plaintext strings.Builder

	opts := []manifest.Option{manifest.WithClock(t.now)}
	if debug {
		opts = append(opts, manifest.WithDebug(&plaintext))
	}

	b, err := manifest.Build(dir, refreshRate, key, opts...)
	if err != nil {
		return err
	}

	if debug {
		path := output + manifest.DebugSuffix
		if err := writeFile(path, []byte(plaintext.String()), 0644); err != nil {
			return err
		}
		t.logger.Printf("Wrote debug manifest to %s\n", path)
	}

	if err := writeFile(output, b, 0644); err != nil {
		return err
	}
	t.logger.Printf("Wrote encrypted manifest (%d bytes) to %s\n", len(b), output)

	if screens, err := manifest.Scan(dir); err == nil && len(screens) > manifest.MaxScreens {
		t.logger.Printf("%d screens in %s, the display only shows the first %d\n", len(screens), dir, manifest.MaxScreens)
	}

	return nil
}

// Inspect decrypts and parses the manifest in file.
func (t *TRMNL) Inspect(key []byte, file string) (*manifest.Manifest, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return manifest.Open(key, b)
}

// Publish validates the bitmap in file and encrypts it into dir, named after
// the bitmap with manifest.Extension. If the catalog shows the same bitmap
// was already published under the same key and the screen still exists it is
// left alone.
func (t *TRMNL) Publish(key []byte, file, dir string) error {
	b, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	polarity, err := t.validate(file, b)
	if err != nil {
		return err
	}

	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	output := filepath.Join(dir, name+manifest.Extension)
	sum, err := digest(key, b)
	if err != nil {
		return err
	}

	if t.db != nil {
		record, err := t.db.FindScreen(name)
		if err != nil {
			return err
		}
		if record != nil && record.Digest == sum {
			if _, err := os.Stat(output); err == nil {
				t.logger.Printf("%s: unchanged, skipping\n", file)
				return nil
			}
		}
	}

	enc, err := crypt.Encrypt(key, b)
	if err != nil {
		return err
	}

	if err := writeFile(output, enc, 0644); err != nil {
		return err
	}
	t.logger.Printf("Wrote encrypted screen (%d bytes) to %s\n", len(enc), output)

	if t.db == nil {
		return nil
	}

	if err := t.db.AddScreen(Record{
		Name:          name,
		Digest:        sum,
		Polarity:      polarity,
		Size:          int64(len(b)),
		EncryptedSize: int64(len(enc)),
		PublishedAt:   t.now().UTC(),
	}); err != nil {
		return fmt.Errorf("recording %s: %w", name, err)
	}

	return nil
}
