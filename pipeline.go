package trmnl

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bodgit/trmnl/bitmap"
)

const publishWorkers = 4

func isFormatError(err error) bool {
	for _, target := range []error{
		bitmap.ErrNotBitmap,
		bitmap.ErrSizeMismatch,
		bitmap.ErrInvalidDataOffset,
		bitmap.ErrColorScheme,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (t *TRMNL) findBitmaps(ctx context.Context, base string) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.WalkDir(base, func(file string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				// Screens are named after the bitmap so only the top directory is considered
				if file != base {
					return filepath.SkipDir
				}
				return nil
			}

			// Ignore any hidden files, otherwise we end up fighting with things like Spotlight, etc.
			if d.Name()[0] == '.' || !d.Type().IsRegular() {
				return nil
			}

			if !strings.EqualFold(filepath.Ext(file), ".bmp") {
				return nil
			}

			select {
			case out <- file:
			case <-ctx.Done():
				return errors.New("walk cancelled")
			}

			return nil
		})
	}()
	return out, errc, nil
}

func (t *TRMNL) publishWorker(ctx context.Context, key []byte, dir string, in <-chan string) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			if ctx.Err() != nil {
				return
			}
			if err := t.Publish(key, file, dir); err != nil {
				if isFormatError(err) {
					t.logger.Printf("Skipping \"%s\": %v\n", file, err)
					continue
				}
				errc <- err
				return
			}
		}
	}()
	return errc, nil
}

func waitForPipeline(errs ...<-chan error) error {
	errc := mergeErrors(errs...)
	for err := range errc {
		if err != nil {
			return err
		}
	}
	return nil
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// PublishAll publishes every bitmap in the source directory into dir. Bitmaps
// the display can't render are logged and skipped, any other error stops the
// run.
func (t *TRMNL) PublishAll(key []byte, source, dir string) error {
	src, err := filepath.Abs(source)
	if err != nil {
		return err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	defer cancelFunc()

	var errcList []<-chan error

	files, errc, err := t.findBitmaps(ctx, src)
	if err != nil {
		return err
	}
	errcList = append(errcList, errc)

	for i := 0; i < publishWorkers; i++ {
		errc, err := t.publishWorker(ctx, key, dir, files)
		if err != nil {
			return err
		}
		errcList = append(errcList, errc)
	}

	return waitForPipeline(errcList...)
}
