package scoring

import (
	"math"
	"sort"

	"leadscore/internal/evalset"
)

// AccuracyTolerance is the largest absolute error still counted as accurate.
const AccuracyTolerance = 1.0

// Fallback records why a prediction used DefaultScore.
type Fallback string

const (
	FallbackNone        Fallback = ""
	FallbackUnparseable Fallback = "unparseable"
	FallbackCallFailed  Fallback = "call_failed"
)

// Prediction is the scored outcome for one record.
type Prediction struct {
	Record    evalset.Record `json:"record"`
	Predicted float64        `json:"predicted"`
	Expected  int            `json:"expected"`
	Error     float64        `json:"error"`
	Fallback  Fallback       `json:"fallback,omitempty"`
}

// NewPrediction clamps predicted and computes the absolute error.
func NewPrediction(record evalset.Record, predicted float64, fallback Fallback) Prediction {
	predicted = Clamp(predicted)
	return Prediction{
		Record:    record,
		Predicted: predicted,
		Expected:  record.ExpectedScore,
		Error:     math.Abs(predicted - float64(record.ExpectedScore)),
		Fallback:  fallback,
	}
}

// Result is the outcome of one evaluation pass.
type Result struct {
	MAE         float64      `json:"mae"`
	Accuracy    float64      `json:"accuracy"`
	Predictions []Prediction `json:"predictions,omitempty"`
}

// FallbackCounts tallies predictions that used DefaultScore, by cause.
type FallbackCounts struct {
	Unparseable int `json:"unparseable"`
	CallFailed  int `json:"callFailed"`
}

// Total returns the number of fallback predictions.
func (f FallbackCounts) Total() int { return f.Unparseable + f.CallFailed }

// Add returns the element-wise sum.
func (f FallbackCounts) Add(other FallbackCounts) FallbackCounts {
	return FallbackCounts{Unparseable: f.Unparseable + other.Unparseable, CallFailed: f.CallFailed + other.CallFailed}
}

// Fallbacks counts predictions in r that used DefaultScore.
func (r Result) Fallbacks() FallbackCounts {
	var counts FallbackCounts
	for _, p := range r.Predictions {
		switch p.Fallback {
		case FallbackUnparseable:
			counts.Unparseable++
		case FallbackCallFailed:
			counts.CallFailed++
		}
	}
	return counts
}

// Metrics computes the mean absolute error and the fraction of predictions
// within AccuracyTolerance. Both are zero for an empty slice.
func Metrics(predictions []Prediction) (mae, accuracy float64) {
	if len(predictions) == 0 {
		return 0, 0
	}
	var totalErr float64
	var accurate int
	for _, p := range predictions {
		totalErr += p.Error
		if p.Error <= AccuracyTolerance {
			accurate++
		}
	}
	n := float64(len(predictions))
	return totalErr / n, float64(accurate) / n
}

// Worst returns up to n predictions sorted by descending error. Ties keep
// file order. The input is not modified.
func Worst(predictions []Prediction, n int) []Prediction {
	sorted := append([]Prediction(nil), predictions...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Error > sorted[j].Error
	})
	if n >= 0 && n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}
