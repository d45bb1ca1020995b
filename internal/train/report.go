package train

import (
	"io"
	"time"

	"github.com/goccy/go-json"
)

// Losses is a pair of mean losses over the two corpus splits.
type Losses struct {
	Train float64 `json:"train_loss"`
	Val   float64 `json:"val_loss"`
}

// Eval is one periodic loss estimate.
type Eval struct {
	Iter int `json:"iter"`
	Losses
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Report summarises a run. When a run is cancelled Iters counts the
// optimizer steps that completed and Final is left zero.
type Report struct {
	Evals     []Eval        `json:"evals"`
	Final     Losses        `json:"final"`
	Iters     int           `json:"iters"`
	Duration  time.Duration `json:"duration_ns"`
	Cancelled bool          `json:"cancelled,omitempty"`
}

// FinalTrain and FinalVal are the losses measured after the last iteration.
func (r *Report) FinalTrain() float64 { return r.Final.Train }
func (r *Report) FinalVal() float64   { return r.Final.Val }

// WriteJSON writes r as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
