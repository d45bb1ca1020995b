package model

import "errors"

var (
	ErrInvalidConfig   = errors.New("model: invalid config")
	ErrHeadsNotDivisor = errors.New("model: embed dim not divisible by head count")
	ErrEmptyVocabulary = errors.New("model: empty vocabulary")
	ErrSequenceTooLong = errors.New("model: sequence longer than block size")
	ErrTokenOutOfRange = errors.New("model: token id out of range")
	ErrShapeMismatch   = errors.New("model: shape mismatch")
	ErrNoTargets       = errors.New("model: backward without targets")
	ErrNoGradients     = errors.New("model: backward on untracked pass")
	ErrNoRandSource    = errors.New("model: training pass needs a random source")
)
