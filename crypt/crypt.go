/*
Package crypt implements the encryption used for every artifact downloaded by
the display, both screens and the manifest.

Each artifact is encrypted with AES-256 in CBC mode using PKCS#7 padding. A
fresh random 16 byte IV is generated for every call to Encrypt and written
ahead of the ciphertext, so the result is at least 32 bytes long:

	[16-byte IV][PKCS#7-padded AES-256-CBC ciphertext]

The format provides confidentiality only; there is no authentication tag. A
modified IV or ciphertext is either rejected with ErrPadding or decrypts to
the wrong plaintext. The firmware decrypts exactly this format, so it can't
change without versioning it.
*/
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the length in bytes of an AES-256 key
	KeySize = 32
	// BlockSize is the AES block size, which is also the IV length
	BlockSize = aes.BlockSize
	// Overhead is the smallest possible encrypted artifact; the IV and
	// one block of padding
	Overhead = BlockSize + BlockSize
)

var (
	// ErrKeyLength is returned when a key isn't exactly KeySize bytes
	ErrKeyLength = errors.New("crypt: key must be 32 bytes (64 hex chars)")
	// ErrInputTooShort is returned when the data can't hold an IV and one
	// block of ciphertext
	ErrInputTooShort = errors.New("crypt: data too short (need at least IV + one block)")
	// ErrPadding is returned when the decrypted padding is inconsistent
	ErrPadding = errors.New("crypt: invalid padding")
)

// Reader is the source of IVs. It's only replaced by tests.
var Reader io.Reader = rand.Reader

func newCipher(key []byte) (cipher.Block, error) {
	if len(key) != KeySize {
		return nil, ErrKeyLength
	}
	return aes.NewCipher(key)
}

func pad(b []byte) []byte {
	n := BlockSize - len(b)%BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 || len(b)%BlockSize != 0 {
		return nil, ErrPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > BlockSize {
		return nil, ErrPadding
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, ErrPadding
		}
	}
	return b[:len(b)-n], nil
}

// Encrypt encrypts plaintext with key, returning the IV followed by the
// ciphertext.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	block, err := newCipher(key)
	if err != nil {
		return nil, err
	}

	padded := len(plaintext) + BlockSize - len(plaintext)%BlockSize

	out := make([]byte, BlockSize, BlockSize+padded)
	if _, err := io.ReadFull(Reader, out); err != nil {
		return nil, fmt.Errorf("crypt: generating IV: %w", err)
	}

	// Pad a copy so the caller's slice is never written to
	buf := pad(append(make([]byte, 0, padded), plaintext...))

	cipher.NewCBCEncrypter(block, out[:BlockSize]).CryptBlocks(buf, buf)

	return append(out, buf...), nil
}

// Decrypt reverses Encrypt. The IV is taken from the first 16 bytes of data.
// Ciphertext that isn't a whole number of blocks is rejected with ErrPadding.
func Decrypt(key, data []byte) ([]byte, error) {
	block, err := newCipher(key)
	if err != nil {
		return nil, err
	}

	if len(data) < Overhead {
		return nil, ErrInputTooShort
	}

	iv, ciphertext := data[:BlockSize], data[BlockSize:]
	if len(ciphertext)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext is not a multiple of the block size", ErrPadding)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return unpad(plaintext)
}
