// Package machine implements the vending transaction engine.
//
// The engine owns all mutable transactional state (phase, balance,
// selection) and exposes a small synchronous API: insert a coin, select an
// item, commit the purchase, cancel, snapshot. Every state transition is
// centralized here - nothing outside the package writes phase, balance, or
// selection.
//
// ARCHITECTURE:
//
// Single logical transaction at a time. Operations are fully synchronous
// and never suspend mid-way; CommitPurchase is atomic from the caller's
// perspective even though it walks the selection internally. The engine is
// not safe for concurrent callers sharing one Machine - run one Machine per
// session. The inventory ledger is the only resource shared across
// sessions and serializes its own mutation.
//
// Every history record is stamped with a strictly increasing seq from the
// engine's logical clock, never ordered by wall time. Each transaction
// (first coin after baseline) gets a token from the configured generator;
// all records of that transaction carry it.
//
// ERROR HANDLING: every failure is a local, recoverable *VendError.
// A failed guard leaves balance and selection byte-for-byte unchanged; the
// engine stays valid and queryable after any error. History append
// failures are logged and do not fail the operation - the transactional
// outcome is already decided by then.
package machine
