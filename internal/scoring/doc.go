// Package scoring evaluates a scoring prompt against labeled leads.
//
// Each lead is scored by one model call. Responses are parsed as strict JSON
// ({"score": n}) first, then by scanning for the first decimal number; if both
// fail, or the call itself fails, the prediction falls back to the midpoint
// score of 5 and records why. Every prediction is clamped to 0..10.
//
// Calls fan out in fixed-size batches: all calls in a batch run concurrently
// and the next batch starts only after the previous one finishes.
package scoring
