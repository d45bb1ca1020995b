//go:build unix

package corpus

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

func readMapped(f *os.File, size int) (string, error) {
	if size == 0 {
		return "", nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		// Fallback path that does not require mmap support.
		buf, readErr := io.ReadAll(f)
		if readErr != nil {
			return "", readErr
		}
		return string(buf), nil
	}
	text := string(data)
	if err := unix.Munmap(data); err != nil {
		return "", err
	}
	return text, nil
}
