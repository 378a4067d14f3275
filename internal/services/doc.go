// Package services defines shared utilities consumed by the optimizer,
// evaluator, and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, iteration numbers, candidate indexes,
//     and run phases for logging.
//   - Structured error markers plus the Wrap helper so the CLI can classify
//     fatal failures and print a next step.
//
// Use these helpers when wiring new run logic so error handling and
// observability stay uniform.
package services
