package trmnl

import (
	"errors"

	"github.com/bodgit/trmnl/crypt"
	"github.com/bodgit/trmnl/secret"
)

var errNoKey = errors.New("no key given")

// LoadKey returns the key given either directly as hex or read as hex from
// keyFile, which may be "-" for stdin. The hex form takes precedence. The
// caller must close the returned buffer.
func LoadKey(hexKey, keyFile string) (*secret.Buffer, error) {
	if hexKey == "" {
		if keyFile == "" {
			return nil, errNoKey
		}
		b, err := secret.ReadFromPath(keyFile)
		if err != nil {
			return nil, err
		}
		defer b.Close()
		hexKey = string(b.Bytes())
	}

	key, err := crypt.ParseKey(hexKey)
	if err != nil {
		return nil, err
	}

	return secret.NewFromBytes(key)
}
