package manifest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bodgit/trmnl/crypt"
)

// Option configures Build.
type Option func(*config)

type config struct {
	now   func() time.Time
	debug io.Writer
}

// WithClock sets the source of the updated_at timestamp, for deterministic
// output.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithDebug also writes the plaintext manifest to w. Nothing reading the
// manifest depends on this copy.
func WithDebug(w io.Writer) Option {
	return func(c *config) {
		c.debug = w
	}
}

// Scan returns a Screen for every encrypted screen in dir, sorted by
// filename. Sizes are read with a separate stat per file after listing the
// directory, so a file changed in between is reported with its new size and
// a file removed in between fails the scan. Errors from the filesystem are
// returned unchanged.
func Scan(dir string) ([]Screen, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var screens []Screen
	for _, entry := range entries {
		filename := entry.Name()
		if !strings.HasSuffix(filename, Extension) || entry.IsDir() {
			continue
		}

		info, err := os.Stat(filepath.Join(dir, filename))
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			continue
		}

		name := strings.TrimSuffix(filename, Extension)
		if name == "" {
			// A bare ".enc" has no extension to strip
			name = filename
		}

		screens = append(screens, Screen{
			Name:     name,
			Filename: filename,
			Size:     info.Size(),
		})
	}

	sort.Slice(screens, func(i, j int) bool { return screens[i].Filename < screens[j].Filename })

	return screens, nil
}

// Build scans dir and returns the encrypted manifest. A zero refreshRate
// selects DefaultRefreshRate. Any error aborts the build.
func Build(dir string, refreshRate int, key []byte, opts ...Option) ([]byte, error) {
	c := &config{
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if len(key) != crypt.KeySize {
		return nil, crypt.ErrKeyLength
	}
	if refreshRate < 0 {
		return nil, ErrRefreshRate
	}

	screens, err := Scan(dir)
	if err != nil {
		return nil, err
	}

	m, err := New(screens, refreshRate, c.now())
	if err != nil {
		return nil, err
	}

	b, err := m.Marshal()
	if err != nil {
		return nil, err
	}

	if c.debug != nil {
		if _, err := c.debug.Write(b); err != nil {
			return nil, fmt.Errorf("manifest: writing debug copy: %w", err)
		}
	}

	return crypt.Encrypt(key, b)
}

// Open decrypts and parses a manifest produced by Build.
func Open(key, data []byte) (*Manifest, error) {
	b, err := crypt.Decrypt(key, data)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}
