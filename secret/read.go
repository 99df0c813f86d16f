package secret

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Stdin is read when the path is "-". It's only replaced by tests.
var Stdin = os.Stdin

func readLine(f *os.File) ([]byte, error) {
	if term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "Key: ")
		defer fmt.Fprintln(os.Stderr)
		return term.ReadPassword(int(f.Fd()))
	}
	return readFirstLine(f)
}

func readFirstLine(r io.Reader) ([]byte, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return nil, errors.New("stdin is empty")
	}
	// Scanner reuses its buffer so take a copy that can be zeroed
	return append([]byte(nil), scanner.Bytes()...), nil
}

// ReadFromPath reads a secret from the file at path, or from stdin if path is
// "-". A terminal on stdin is read without echo. Surrounding whitespace is
// trimmed and an empty secret is an error. The caller must close the
// returned buffer.
func ReadFromPath(path string) (*Buffer, error) {
	var data []byte
	var err error

	if path == "-" {
		data, err = readLine(Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	defer Zero(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("secret is empty")
	}

	return NewFromBytes(trimmed)
}
