package trmnl

import (
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/bodgit/trmnl/bitmap"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/blake3"
)

// ScreenDB is the catalog of published screens.
type ScreenDB struct {
	db *sql.DB
}

// Record is a single published screen.
type Record struct {
	Name string
	// Digest is the BLAKE3 digest of the plaintext bitmap, keyed by the
	// encryption key
	Digest        string
	Polarity      bitmap.Polarity
	Size          int64
	EncryptedSize int64
	PublishedAt   time.Time
}

const digestContext = "github.com/bodgit/trmnl 2025-06-01 screen catalog digest"

// digest returns the BLAKE3 MAC of b under a key derived from the encryption
// key, so the same bitmap encrypted under another key never matches.
func digest(key, b []byte) (string, error) {
	var mac [32]byte
	blake3.DeriveKey(digestContext, key, mac[:])

	h, err := blake3.NewKeyed(mac[:])
	if err != nil {
		return "", err
	}
	h.Write(b)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// NewScreenDB opens, creating if necessary, the catalog in file.
func NewScreenDB(file string) (*ScreenDB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_busy_timeout=5000", file))
	if err != nil {
		return nil, err
	}
	// Publishing workers write concurrently
	db.SetMaxOpenConns(1)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS screen (id INTEGER PRIMARY KEY NOT NULL, name TEXT NOT NULL UNIQUE, digest TEXT NOT NULL, polarity INTEGER NOT NULL, size INTEGER NOT NULL, encrypted_size INTEGER NOT NULL, published_at TIMESTAMP NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	return &ScreenDB{
		db: db,
	}, nil
}

// Close closes the catalog.
func (db *ScreenDB) Close() error {
	return db.db.Close()
}

// AddScreen records r, replacing any previous record with the same name.
func (db *ScreenDB) AddScreen(r Record) error {
	if _, err := db.db.Exec("INSERT OR REPLACE INTO screen (name, digest, polarity, size, encrypted_size, published_at) VALUES (?, ?, ?, ?, ?, ?)", r.Name, r.Digest, int(r.Polarity), r.Size, r.EncryptedSize, r.PublishedAt); err != nil {
		return err
	}
	return nil
}

// FindScreen returns the record for name, or nil if it has never been
// published.
func (db *ScreenDB) FindScreen(name string) (*Record, error) {
	r := Record{Name: name}
	var polarity int
	switch err := db.db.QueryRow("SELECT digest, polarity, size, encrypted_size, published_at FROM screen WHERE name = ?", name).Scan(&r.Digest, &polarity, &r.Size, &r.EncryptedSize, &r.PublishedAt); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		r.Polarity = bitmap.Polarity(polarity)
		return &r, nil
	default:
		return nil, err
	}
}

// Screens returns every record ordered by name.
func (db *ScreenDB) Screens() ([]Record, error) {
	rows, err := db.db.Query("SELECT name, digest, polarity, size, encrypted_size, published_at FROM screen ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var polarity int
		if err := rows.Scan(&r.Name, &r.Digest, &polarity, &r.Size, &r.EncryptedSize, &r.PublishedAt); err != nil {
			return nil, err
		}
		r.Polarity = bitmap.Polarity(polarity)
		records = append(records, r)
	}

	return records, rows.Err()
}
