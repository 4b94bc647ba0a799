package output

import (
	"bufio"
	"fmt"
	"os"

	"github.com/gofrs/flock"
)

// WriteFile renders r into path while holding an advisory lock on
// "<path>.lock", so concurrent runs sharing an output file do not interleave.
func WriteFile(path, format string, r Report) (err error) {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() {
		if uerr := lock.Unlock(); uerr != nil && err == nil {
			err = fmt.Errorf("unlock %s: %w", path, uerr)
		}
	}()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	if err := Render(bw, format, r); err != nil {
		return err
	}
	return bw.Flush()
}
