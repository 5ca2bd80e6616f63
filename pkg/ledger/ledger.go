package ledger

import (
	"github.com/tallyhq/tally/pkg/types"
)

// Recompute returns the new aggregate value after a contributing mutation.
// It is a pure function and is the only way a derived aggregate changes: both
// the online success handler and the offline optimistic-apply step call it
// with identical arguments, so the balance a user sees offline is exactly
// what the remote store computes once synced.
//
// A create applies the movement, a delete reverses it. Updates are expressed
// by the caller as reverse-old followed by apply-new.
func Recompute(current int64, kind types.OpKind, amount int64, direction types.Direction) int64 {
	signed := amount
	if direction == types.DirectionOutflow {
		signed = -amount
	}

	switch kind {
	case types.OpCreate:
		return current + signed
	case types.OpDelete:
		return current - signed
	default:
		return current
	}
}

// ApplyTransaction folds a transaction into an account balance.
func ApplyTransaction(balance int64, txn *types.Transaction) int64 {
	return Recompute(balance, types.OpCreate, txn.Amount, txn.Direction)
}

// ReverseTransaction removes a transaction's contribution from a balance.
func ReverseTransaction(balance int64, txn *types.Transaction) int64 {
	return Recompute(balance, types.OpDelete, txn.Amount, txn.Direction)
}

// BalanceOf recomputes an account balance from scratch over its transactions.
func BalanceOf(opening int64, txns []*types.Transaction) int64 {
	balance := opening
	for _, txn := range txns {
		balance = ApplyTransaction(balance, txn)
	}
	return balance
}
