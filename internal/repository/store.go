package repository

import "context"

// TxQuerier is a Querier bound to an open transaction.
type TxQuerier interface {
	Querier

	// Savepoint runs fn in a nested transaction. If fn fails only its own
	// writes are rolled back and the outer transaction stays usable.
	Savepoint(ctx context.Context, fn func(Querier) error) error
}

// Store is the ledger's single source of truth: plain queries plus atomic
// units of work.
type Store interface {
	Querier

	// ExecTx runs fn in one transaction, committing when fn returns nil.
	// Transient conflicts (serialization failure, deadlock, number collision)
	// retry fn a bounded number of times, so fn must not have side effects
	// outside the transaction.
	ExecTx(ctx context.Context, fn func(TxQuerier) error) error
}
