//go:build linux

package secret

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func allocate(size int) ([]byte, error) {
	data, err := mapLocked(size)
	if err != nil {
		return nil, err
	}

	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		release(data)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	return data, nil
}
