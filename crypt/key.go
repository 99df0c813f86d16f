package crypt

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// ParseKey decodes a key from its 64 character hexadecimal form. Anything
// other than exactly 64 hex characters is rejected before any decoding.
func ParseKey(s string) ([]byte, error) {
	if len(s) != hex.EncodedLen(KeySize) {
		return nil, ErrKeyLength
	}
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("crypt: invalid key: %w", err)
	}
	return key, nil
}

// FormatKey returns the lowercase hexadecimal form of key.
func FormatKey(key []byte) string {
	return hex.EncodeToString(key)
}

// GenerateKey returns a new random key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(Reader, key); err != nil {
		return nil, fmt.Errorf("crypt: generating key: %w", err)
	}
	return key, nil
}

// CHeader returns key as a C array declaration suitable for compiling into
// the firmware.
func CHeader(key []byte) string {
	bytes := make([]string, len(key))
	for i, b := range key {
		bytes[i] = fmt.Sprintf("0x%02x", b)
	}
	return fmt.Sprintf("static const uint8_t aes_key[%d] = {%s};", len(key), strings.Join(bytes, ", "))
}
