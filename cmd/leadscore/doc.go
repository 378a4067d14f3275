// Package main hosts the leadscore CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the prompt optimizer, evaluates a single
// prompt, inspects or clears the resume checkpoint, browses run history,
// reports preflight status, and scaffolds configuration. It centralizes
// configuration resolution and structured logging setup so subcommands can
// focus on presentation.
//
// Keep this package lean: behavior lives in the internal packages and is
// surfaced here through dedicated commands or flags.
package main
