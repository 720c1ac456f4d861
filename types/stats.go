package types

// Statistics are aggregate counters across the whole ledger.
type Statistics struct {
	AccountCount       int64
	TransactionCount   int64
	PendingEscrowCount int64
	// TotalAvailable and TotalFrozen sum the respective balances over all
	// accounts.
	TotalAvailable int64
	TotalFrozen    int64
	// TransferVolume sums the amounts of transactions that executed,
	// including those later refunded. A refund adds its own volume rather
	// than subtracting the original's.
	TransferVolume int64
	// FeesBurned sums the fees of executed transactions. Fees are debited
	// from senders but credited to no account, so this is exactly the gap
	// between funds issued and funds held.
	FeesBurned int64
}
