// Package optimizer runs the beam search that refines a lead scoring prompt.
//
// A run starts from a baseline prompt (or a checkpoint), then repeats a fixed
// iteration: ask the generator model for new prompts conditioned on the
// current best prompt's worst predictions, evaluate every candidate, and keep
// the best beam-width prompts by ascending MAE. Iterations stop after the
// configured maximum or once the best score stagnates.
//
// Run state is an explicit value. Step takes a State and returns the next one
// without mutating its input, which keeps the loop testable with a scripted
// model. CheckpointStore persists the state after the baseline and after every
// iteration; a resumed run re-evaluates only the best prompt before continuing.
package optimizer
