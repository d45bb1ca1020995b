package corpus

import (
	"errors"
	"testing"
)

func TestBuildVocabularySortedDeduplicated(t *testing.T) {
	t.Parallel()
	v, err := BuildVocabulary("hello world")
	if err != nil {
		t.Fatalf("BuildVocabulary: %v", err)
	}
	if got, want := v.Chars(), " dehlorw"; got != want {
		t.Fatalf("chars: got %q want %q", got, want)
	}
	if v.Size() != 8 {
		t.Fatalf("size: got %d want 8", v.Size())
	}
}

func TestBuildVocabularyEmpty(t *testing.T) {
	t.Parallel()
	if _, err := BuildVocabulary(""); !errors.Is(err, ErrEmptyVocabulary) {
		t.Fatalf("expected ErrEmptyVocabulary, got %v", err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	v, err := BuildVocabulary("First Citizen: Before we proceed any further, hear me speak. ñé")
	if err != nil {
		t.Fatalf("BuildVocabulary: %v", err)
	}
	tests := []string{"", "hear me", "speak, Citizen.", "ñé ñ", "FFFF"}
	for _, s := range tests {
		ids, err := v.Encode(s)
		if err != nil {
			t.Fatalf("Encode(%q): %v", s, err)
		}
		got, err := v.Decode(ids)
		if err != nil {
			t.Fatalf("Decode(%q): %v", s, err)
		}
		if got != s {
			t.Fatalf("round trip: got %q want %q", got, s)
		}
	}
}

func TestEncodeUnknownRune(t *testing.T) {
	t.Parallel()
	v, _ := BuildVocabulary("abc")
	if _, err := v.Encode("abz"); !errors.Is(err, ErrUnknownRune) {
		t.Fatalf("expected ErrUnknownRune, got %v", err)
	}
	if v.Contains("abz") {
		t.Fatal("Contains reported unknown rune as present")
	}
}

func TestDecodeOutOfRange(t *testing.T) {
	t.Parallel()
	v, _ := BuildVocabulary("abc")
	for _, id := range []int{-1, 3} {
		if _, err := v.Decode([]int{0, id}); !errors.Is(err, ErrTokenOutOfRange) {
			t.Fatalf("id %d: expected ErrTokenOutOfRange, got %v", id, err)
		}
	}
}
