/*
Package manifest builds the encrypted index of screens the display downloads
on every wake.

Before encryption the manifest is JSON with a fixed field order:

	{
	  "version": 1,
	  "refresh_rate": 1800,
	  "updated_at": "2025-01-01T00:00:00Z",
	  "screens": [
	    {"name": "screen1", "filename": "screen1.enc", "size": 12345}
	  ]
	}

Screens are listed in ascending byte order of their filenames and the
manifest is always rebuilt from scratch.
*/
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// Version is the manifest schema version
	Version = 1
	// DefaultRefreshRate is the refresh rate in seconds used when none is
	// given
	DefaultRefreshRate = 1800
	// Extension is the filename extension of encrypted screens
	Extension = ".enc"
	// DebugSuffix is appended to the output path for the plaintext copy
	DebugSuffix = ".debug.json"
	// MaxScreens is the number of screens the display keeps from a manifest
	MaxScreens = 16
)

var (
	// ErrEmptyDirectory is returned when no encrypted screens are found
	ErrEmptyDirectory = errors.New("manifest: no " + Extension + " files found")
	// ErrRefreshRate is returned for a negative refresh rate
	ErrRefreshRate = errors.New("manifest: refresh rate must be positive")
	// ErrNoScreens is returned when parsing a manifest without screens
	ErrNoScreens = errors.New("manifest: no screens")
)

// Screen describes a single encrypted screen.
type Screen struct {
	Name     string `json:"name"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Manifest is the index of available screens.
type Manifest struct {
	Version     int      `json:"version"`
	RefreshRate int      `json:"refresh_rate"`
	UpdatedAt   string   `json:"updated_at"`
	Screens     []Screen `json:"screens"`
}

// New returns a manifest for screens. A zero refreshRate selects
// DefaultRefreshRate. The timestamp is recorded in UTC.
func New(screens []Screen, refreshRate int, now time.Time) (*Manifest, error) {
	if len(screens) == 0 {
		return nil, ErrEmptyDirectory
	}
	switch {
	case refreshRate == 0:
		refreshRate = DefaultRefreshRate
	case refreshRate < 0:
		return nil, ErrRefreshRate
	}
	return &Manifest{
		Version:     Version,
		RefreshRate: refreshRate,
		UpdatedAt:   now.UTC().Format(time.RFC3339),
		Screens:     screens,
	}, nil
}

// Marshal returns the canonical JSON encoding of m.
func (m *Manifest) Marshal() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// Parse decodes a plaintext manifest the way the display does; a missing
// refresh rate falls back to DefaultRefreshRate, at least one screen is
// required and only the first MaxScreens screens are kept.
func Parse(b []byte) (*Manifest, error) {
	m := new(Manifest)
	if err := json.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if m.RefreshRate == 0 {
		m.RefreshRate = DefaultRefreshRate
	}
	if len(m.Screens) == 0 {
		return nil, ErrNoScreens
	}
	if len(m.Screens) > MaxScreens {
		m.Screens = m.Screens[:MaxScreens]
	}
	return m, nil
}
