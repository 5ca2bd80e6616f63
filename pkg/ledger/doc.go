// Package ledger holds the pure derived-state recomputation for account
// balances. Balances are never mutated directly; every contributing mutation
// flows through Recompute on both the online and offline write paths.
package ledger
