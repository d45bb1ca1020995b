package corpus

import "errors"

var (
	ErrEmptyVocabulary = errors.New("corpus: empty vocabulary")
	ErrUnknownRune     = errors.New("corpus: character not in vocabulary")
	ErrTokenOutOfRange = errors.New("corpus: token id out of range")
	ErrSplitTooShort   = errors.New("corpus: split shorter than block size")
	ErrUnknownSplit    = errors.New("corpus: unknown split")
)
