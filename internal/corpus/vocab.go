package corpus

import (
	"fmt"
	"slices"
)

// Vocabulary is a bijection between the distinct characters of a corpus,
// in sorted order, and the dense ids 0..Size()-1. It is immutable once built.
type Vocabulary struct {
	chars []rune
	index map[rune]int
}

// BuildVocabulary collects, sorts and deduplicates the runes of text.
func BuildVocabulary(text string) (*Vocabulary, error) {
	seen := make(map[rune]struct{})
	for _, r := range text {
		seen[r] = struct{}{}
	}
	if len(seen) == 0 {
		return nil, ErrEmptyVocabulary
	}
	chars := make([]rune, 0, len(seen))
	for r := range seen {
		chars = append(chars, r)
	}
	slices.Sort(chars)

	index := make(map[rune]int, len(chars))
	for i, r := range chars {
		index[r] = i
	}
	return &Vocabulary{chars: chars, index: index}, nil
}

// Size returns the number of distinct characters.
func (v *Vocabulary) Size() int { return len(v.chars) }

// Chars returns the vocabulary in id order.
func (v *Vocabulary) Chars() string { return string(v.chars) }

// Contains reports whether every character of s is in the vocabulary.
func (v *Vocabulary) Contains(s string) bool {
	for _, r := range s {
		if _, ok := v.index[r]; !ok {
			return false
		}
	}
	return true
}

func (v *Vocabulary) Encode(s string) ([]int, error) {
	ids := make([]int, 0, len(s))
	for _, r := range s {
		id, ok := v.index[r]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownRune, r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (v *Vocabulary) Decode(ids []int) (string, error) {
	out := make([]rune, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(v.chars) {
			return "", fmt.Errorf("%w: %d (vocab size %d)", ErrTokenOutOfRange, id, len(v.chars))
		}
		out[i] = v.chars[id]
	}
	return string(out), nil
}
