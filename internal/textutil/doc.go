// Package textutil provides small text helpers shared by the optimizer and CLI:
// rune-safe truncation for prompt previews and token fingerprints for
// measuring how far a generated prompt drifted from its parent.
package textutil
