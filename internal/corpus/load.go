package corpus

import (
	"fmt"
	"os"
	"unicode/utf8"
)

// Load reads the corpus at path as UTF-8 text. Files are mapped read-only
// where the platform supports it and copied out before unmapping.
func Load(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return "", err
	}
	size64 := stat.Size()
	if size64 > int64(int(^uint(0)>>1)) {
		return "", fmt.Errorf("corpus: %s too large to index", path)
	}

	text, err := readMapped(f, int(size64))
	if err != nil {
		return "", fmt.Errorf("read corpus %s: %w", path, err)
	}
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("corpus: %s is not valid UTF-8", path)
	}
	return text, nil
}

// LoadDataset loads path and builds its Dataset.
func LoadDataset(path string) (*Dataset, error) {
	text, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewDataset(text)
}
