package corpus

import (
	"fmt"
	"math/rand/v2"
)

// TrainFraction is the share of the token sequence used for training.
const TrainFraction = 0.9

type Split string

const (
	SplitTrain Split = "train"
	SplitVal   Split = "val"
)

// SplitIDs cuts ids at int(frac*len(ids)). The halves share the backing
// array of ids and together reconstruct it in order.
func SplitIDs(ids []int, frac float64) (train, val []int) {
	n := int(frac * float64(len(ids)))
	n = min(max(n, 0), len(ids))
	return ids[:n:n], ids[n:]
}

// Dataset holds the encoded corpus split into training and validation ids.
type Dataset struct {
	Vocab *Vocabulary
	Train []int
	Val   []int
}

// NewDataset builds the vocabulary from text, encodes it and splits it.
func NewDataset(text string) (*Dataset, error) {
	vocab, err := BuildVocabulary(text)
	if err != nil {
		return nil, err
	}
	ids, err := vocab.Encode(text)
	if err != nil {
		return nil, err
	}
	train, val := SplitIDs(ids, TrainFraction)
	return &Dataset{Vocab: vocab, Train: train, Val: val}, nil
}

func (d *Dataset) ids(split Split) ([]int, error) {
	switch split {
	case SplitTrain:
		return d.Train, nil
	case SplitVal:
		return d.Val, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSplit, split)
	}
}

// Batch is a set of input windows and the same windows shifted by one token.
type Batch struct {
	Inputs  [][]int
	Targets [][]int
}

// Batcher samples fixed-size batches of windows from a Dataset.
type Batcher struct {
	data      *Dataset
	batchSize int
	blockSize int
}

func NewBatcher(data *Dataset, batchSize, blockSize int) *Batcher {
	return &Batcher{data: data, batchSize: batchSize, blockSize: blockSize}
}

// Validate reports whether both splits are long enough to draw a window.
func (b *Batcher) Validate() error {
	for _, split := range []Split{SplitTrain, SplitVal} {
		ids, _ := b.data.ids(split)
		if len(ids) <= b.blockSize {
			return fmt.Errorf("%w: %s has %d tokens, need more than %d", ErrSplitTooShort, split, len(ids), b.blockSize)
		}
	}
	return nil
}

// GetBatch draws batchSize windows with independent uniform start offsets in
// [0, len(split)-blockSize) using rng.
func (b *Batcher) GetBatch(split Split, rng *rand.Rand) (Batch, error) {
	ids, err := b.data.ids(split)
	if err != nil {
		return Batch{}, err
	}
	span := len(ids) - b.blockSize
	if span <= 0 {
		return Batch{}, fmt.Errorf("%w: %s has %d tokens, need more than %d", ErrSplitTooShort, split, len(ids), b.blockSize)
	}

	batch := Batch{
		Inputs:  make([][]int, b.batchSize),
		Targets: make([][]int, b.batchSize),
	}
	for i := range b.batchSize {
		start := rng.IntN(span)
		batch.Inputs[i] = ids[start : start+b.blockSize : start+b.blockSize]
		batch.Targets[i] = ids[start+1 : start+1+b.blockSize : start+1+b.blockSize]
	}
	return batch, nil
}
