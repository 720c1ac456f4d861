// Package ledger is a clearing engine for machine-to-machine micropayments.
//
// It is a library, not a service: embed it in your application, hand it a
// store, and call operations directly. The engine tracks per-account
// balances, moves value under authorization and limit rules, holds funds in
// escrow pending a condition, executes transfer batches with partial-failure
// tracking, and keeps an append-only audit trail.
//
// # Quick Start
//
//	import (
//	    "github.com/roboclear/ledger"
//	    "github.com/roboclear/ledger/store/memory"
//	)
//
//	eng := ledger.New(memory.New())
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
//	acct, err := eng.CreateAccount(ctx, ledger.CreateAccountParams{
//	    Name:  "crawler-7",
//	    Roles: types.RoleSet{types.RoleConsumer},
//	})
//
// The store/postgres and store/sqlite packages provide durable backends
// behind the same store.Store interface.
//
// # Money
//
// All amounts are int64 minor units (cents, satoshi, credits). There is no
// floating point anywhere in balance arithmetic; fee calculation uses
// fixed-point decimals and rounds to a whole minor unit before touching a
// balance.
//
// # Transfers
//
// Transfer moves value between two accounts atomically, with a persisted
// transaction record for every attempt, completed or failed. Pass an
// IdempotencyKey to make a transfer replay-safe: retrying the same key
// returns an *IdempotencyError carrying the original transaction id instead
// of moving value twice.
//
// # Escrow
//
// CreateEscrow freezes funds on the sender; ReleaseEscrow pays them out to
// the recipient, RefundEscrow returns them. An escrow settles exactly once.
//
// # Events
//
// Events() exposes an in-process bus. Handlers run concurrently per event
// and cannot fail an operation; the operation is already committed by the
// time handlers see it.
package ledger
