//go:build darwin || freebsd || netbsd || openbsd

package secret

func allocate(size int) ([]byte, error) {
	return mapLocked(size)
}
