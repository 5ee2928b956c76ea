// Package harness executes YAML-defined vending scenarios against a fresh
// machine and produces deterministic traces.
//
// A scenario names a sequence of operations (insert, select, commit,
// cancel, restock, refill, clear_history), each with an optional expect
// clause, plus final-state assertions. The runner builds an isolated
// machine per run - in-memory history log, sequential transaction tokens -
// so the same scenario always yields the same trace, which is what makes
// golden file comparison meaningful.
//
// RunWithGolden compares the trace snapshot against golden files under
// testdata/golden; regenerate with:
//
//	go test ./internal/harness -update
package harness
