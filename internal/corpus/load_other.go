//go:build !unix

package corpus

import (
	"io"
	"os"
)

func readMapped(f *os.File, _ int) (string, error) {
	buf, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
