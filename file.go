package trmnl

import (
	"os"
	"path/filepath"
)

// writeFile writes b to a temporary file next to name and renames it into
// place so the web server never serves a partial file.
func writeFile(name string, b []byte, perm os.FileMode) (err error) {
	f, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(f.Name())
		}
	}()

	if _, err = f.Write(b); err != nil {
		f.Close()
		return err
	}

	if err = f.Chmod(perm); err != nil {
		f.Close()
		return err
	}

	if err = f.Close(); err != nil {
		return err
	}

	return os.Rename(f.Name(), name)
}
