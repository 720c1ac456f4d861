package ledger_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

func TestCreateAccount_Defaults(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	acct, err := eng.CreateAccount(ctx, ledger.CreateAccountParams{Name: "crawler-7"})
	require.NoError(t, err)

	assert.NotEmpty(t, acct.ID, "an id is assigned when none is given")
	assert.Equal(t, "crawler-7", acct.Name)
	assert.Equal(t, types.AccountStatusActive, acct.Status)
	assert.Equal(t, types.RoleSet{types.RoleConsumer}, acct.Roles)
	assert.Equal(t, int64(0), acct.Balance)
	assert.Equal(t, int64(0), acct.FrozenBalance)
	assert.False(t, acct.CreatedAt.IsZero())

	got, err := eng.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)
}

func TestCreateAccount_Validation(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	negative := int64(-1)

	tests := []struct {
		name    string
		params  ledger.CreateAccountParams
		wantErr error
	}{
		{
			name:    "negative initial balance",
			params:  ledger.CreateAccountParams{Name: "x", InitialBalance: &negative},
			wantErr: ledger.ErrValidation,
		},
		{
			name:    "unknown role",
			params:  ledger.CreateAccountParams{Name: "x", Roles: types.RoleSet{"SUPERUSER"}},
			wantErr: ledger.ErrValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.CreateAccount(ctx, tt.params)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	seedAccount(t, eng, "taken", 0)
	_, err := eng.CreateAccount(ctx, ledger.CreateAccountParams{ID: "taken"})
	require.ErrorIs(t, err, ledger.ErrAccountExists)
}

func TestUpdateAccount(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "unit-1", 100)
	seedAdmin(t, eng, "root")

	name := "unit-1-renamed"
	ceiling := int64(500)
	updated, err := eng.UpdateAccount(ctx, ledger.UpdateAccountParams{
		ID:     "unit-1",
		Name:   &name,
		Limits: &types.Limits{MaxTransferAmount: &ceiling},
	})
	require.NoError(t, err)
	assert.Equal(t, "unit-1-renamed", updated.Name)
	require.NotNil(t, updated.Limits)
	assert.Equal(t, int64(500), *updated.Limits.MaxTransferAmount)
	assert.Equal(t, int64(100), updated.Balance, "updates never touch balances")

	// Role changes are gated: the account itself is not allowed.
	_, err = eng.UpdateAccount(ctx, ledger.UpdateAccountParams{
		ID:    "unit-1",
		Roles: types.RoleSet{types.RoleConsumer, types.RoleOperator},
	})
	require.ErrorIs(t, err, ledger.ErrForbidden)
	var forbidden *ledger.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, "change_roles", forbidden.Action)

	updated, err = eng.UpdateAccount(ctx, ledger.UpdateAccountParams{
		ID:          "unit-1",
		Roles:       types.RoleSet{types.RoleConsumer, types.RoleOperator},
		InitiatedBy: "root",
	})
	require.NoError(t, err)
	assert.Equal(t, types.RoleSet{types.RoleConsumer, types.RoleOperator}, updated.Roles)

	_, err = eng.UpdateAccount(ctx, ledger.UpdateAccountParams{
		ID:    "unit-1",
		Roles: types.RoleSet{"SUPERUSER"},
	})
	require.ErrorIs(t, err, ledger.ErrValidation)

	_, err = eng.UpdateAccount(ctx, ledger.UpdateAccountParams{ID: "ghost", Name: &name})
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestFreezeBlocksSpending(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "payer", 1000)
	seedAccount(t, eng, "payee", 0)
	seedAdmin(t, eng, "root")

	frozen, err := eng.FreezeAccount(ctx, "payer", "root")
	require.NoError(t, err)
	assert.Equal(t, types.AccountStatusFrozen, frozen.Status)

	_, err = eng.Transfer(ctx, ledger.TransferParams{From: "payer", To: "payee", Amount: 100})
	require.ErrorIs(t, err, ledger.ErrAccountNotActive)

	_, err = eng.Debit(ctx, ledger.DebitParams{AccountID: "payer", Amount: 100, InitiatedBy: "root"})
	require.ErrorIs(t, err, ledger.ErrAccountNotActive)

	// Credits still land: owed funds are never bounced.
	op, err := eng.Credit(ctx, ledger.CreditParams{AccountID: "payer", Amount: 50, Reason: "owed"})
	require.NoError(t, err)
	assert.Equal(t, int64(1050), op.BalanceAfter)

	_, err = eng.UnfreezeAccount(ctx, "payer", "root")
	require.NoError(t, err)

	txn, err := eng.Transfer(ctx, ledger.TransferParams{From: "payer", To: "payee", Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, types.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, int64(950), getBalance(t, eng, "payer").Available)
}

func TestStatusTransitions(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		prepare func(t *testing.T, id string)
		act     func(id string) error
		wantErr error
	}{
		{
			name:    "freeze already frozen",
			prepare: func(t *testing.T, id string) { mustFreeze(t, eng, id) },
			act: func(id string) error {
				_, err := eng.FreezeAccount(ctx, id, "")
				return err
			},
			wantErr: ledger.ErrConflict,
		},
		{
			name:    "unfreeze active",
			prepare: func(t *testing.T, id string) {},
			act: func(id string) error {
				_, err := eng.UnfreezeAccount(ctx, id, "")
				return err
			},
			wantErr: ledger.ErrConflict,
		},
		{
			name: "suspend twice",
			prepare: func(t *testing.T, id string) {
				_, err := eng.SuspendAccount(ctx, id, "")
				require.NoError(t, err)
			},
			act: func(id string) error {
				_, err := eng.SuspendAccount(ctx, id, "")
				return err
			},
			wantErr: ledger.ErrConflict,
		},
		{
			name:    "suspend frozen is allowed",
			prepare: func(t *testing.T, id string) { mustFreeze(t, eng, id) },
			act: func(id string) error {
				_, err := eng.SuspendAccount(ctx, id, "")
				return err
			},
			wantErr: nil,
		},
		{
			name:    "close with funds",
			prepare: func(t *testing.T, id string) {},
			act: func(id string) error {
				_, err := eng.CloseAccount(ctx, id, "")
				return err
			},
			wantErr: ledger.ErrAccountNotEmpty,
		},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := fmt.Sprintf("transitions-%d", i)
			seedAccount(t, eng, id, 10)
			tt.prepare(t, id)
			err := tt.act(id)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCloseAccountIsTerminal(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "retiring", 300)
	seedAccount(t, eng, "sink", 0)

	// An account closes only once drained.
	_, err := eng.Transfer(ctx, ledger.TransferParams{From: "retiring", To: "sink", Amount: 300})
	require.NoError(t, err)

	closed, err := eng.CloseAccount(ctx, "retiring", "")
	require.NoError(t, err)
	assert.Equal(t, types.AccountStatusClosed, closed.Status)

	_, err = eng.Credit(ctx, ledger.CreditParams{AccountID: "retiring", Amount: 10})
	require.ErrorIs(t, err, ledger.ErrAccountClosed)

	_, err = eng.FreezeAccount(ctx, "retiring", "")
	require.ErrorIs(t, err, ledger.ErrAccountClosed)

	_, err = eng.UnfreezeAccount(ctx, "retiring", "")
	require.ErrorIs(t, err, ledger.ErrAccountClosed)
}

func TestDeleteAccountKeepsHistory(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	seedAccount(t, eng, "ephemeral", 200)
	seedAccount(t, eng, "keeper", 0)

	err := eng.DeleteAccount(ctx, "ephemeral", "")
	require.ErrorIs(t, err, ledger.ErrAccountNotEmpty)

	txn, err := eng.Transfer(ctx, ledger.TransferParams{From: "ephemeral", To: "keeper", Amount: 200})
	require.NoError(t, err)

	require.NoError(t, eng.DeleteAccount(ctx, "ephemeral", ""))
	_, err = eng.GetAccount(ctx, "ephemeral")
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
	assert.True(t, ledger.IsNotFound(err))

	// The journal outlives the account.
	got, err := eng.GetTransaction(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "ephemeral", got.From)

	txns, err := eng.ListTransactions(ctx, store.TransactionFilter{AccountID: "ephemeral"})
	require.NoError(t, err)
	require.Len(t, txns, 1)
}

func mustFreeze(t *testing.T, eng *ledger.Engine, id string) {
	t.Helper()
	_, err := eng.FreezeAccount(context.Background(), id, "")
	require.NoError(t, err)
}
