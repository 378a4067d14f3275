// Package preflight provides readiness checks for the files, directories and
// model endpoint an optimizer run depends on.
//
// The CLI "leadscore status" command runs RunAll and renders each Result.
// Individual checks (CheckEvalFile, CheckDirectoryAccess, CheckLLM) are also
// usable on their own.
package preflight
