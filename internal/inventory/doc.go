// Package inventory implements the per-item stock ledger.
//
// The ledger is the only resource shared between an in-flight transaction
// and the administrative surface: an admin restock can change a counter
// while a selection is pending, so the engine re-validates stock at commit
// time. All counter mutation is serialized under a single mutex.
//
// Counters are bounded: Decrement never drives a counter below zero (it
// fails with Depleted instead), and SetStock clamps to [0, capacity].
package inventory
