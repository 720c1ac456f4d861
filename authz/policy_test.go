package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger/authz"
	"github.com/roboclear/ledger/types"
)

func acct(id string, roles ...types.Role) *types.Account {
	return &types.Account{ID: id, Name: id, Roles: roles, Status: types.AccountStatusActive}
}

func TestRolePolicy_CanTransfer(t *testing.T) {
	consumer := acct("alpha", types.RoleConsumer)
	provider := acct("bravo", types.RoleProvider)
	both := acct("charlie", types.RoleConsumer, types.RoleProvider)
	admin := acct("root", types.RoleAdmin)
	operator := acct("dispatcher", types.RoleOperator)

	tests := []struct {
		name      string
		from, to  *types.Account
		initiator *types.Account
		want      bool
	}{
		{"consumer pays provider", consumer, provider, consumer, true},
		{"provider cannot spend", provider, consumer, provider, false},
		{"recipient must be a provider", consumer, acct("delta", types.RoleConsumer), consumer, false},
		{"third party cannot initiate", consumer, provider, both, false},
		{"operator initiates for anyone", provider, consumer, operator, true},
		{"admin initiates for anyone", provider, consumer, admin, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := authz.RolePolicy{}.CanTransfer(context.Background(), tc.from, tc.to, tc.initiator, 100, types.TransactionTypeTransfer)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestRolePolicy_CanChangeRoles(t *testing.T) {
	target := acct("alpha", types.RoleConsumer)
	ctx := context.Background()
	roles := types.RoleSet{types.RoleProvider}

	ok, err := authz.RolePolicy{}.CanChangeRoles(ctx, target, acct("root", types.RoleAdmin), roles)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = authz.RolePolicy{}.CanChangeRoles(ctx, target, acct("dispatcher", types.RoleOperator), roles)
	require.NoError(t, err)
	assert.False(t, ok, "operators do not grant roles")

	ok, err = authz.RolePolicy{}.CanChangeRoles(ctx, target, target, roles)
	require.NoError(t, err)
	assert.False(t, ok, "accounts do not promote themselves")
}

func TestRolePolicy_CanCredit(t *testing.T) {
	target := acct("alpha", types.RoleConsumer)
	ctx := context.Background()

	tests := []struct {
		name      string
		initiator *types.Account
		want      bool
	}{
		{"self top-up", target, true},
		{"operator", acct("dispatcher", types.RoleOperator), true},
		{"admin", acct("root", types.RoleAdmin), true},
		{"stranger", acct("bravo", types.RoleConsumer), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := authz.RolePolicy{}.CanCredit(ctx, target, tc.initiator, 100)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestRolePolicy_CanDebit(t *testing.T) {
	target := acct("alpha", types.RoleConsumer)
	ctx := context.Background()

	ok, err := authz.RolePolicy{}.CanDebit(ctx, target, acct("root", types.RoleAdmin), 100)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = authz.RolePolicy{}.CanDebit(ctx, target, target, 100)
	require.NoError(t, err)
	assert.False(t, ok, "even the owner cannot pull funds out directly")

	ok, err = authz.RolePolicy{}.CanDebit(ctx, target, acct("dispatcher", types.RoleOperator), 100)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRolePolicy_EscrowSettlement(t *testing.T) {
	esc := &types.Escrow{From: "payer", To: "worker"}

	tests := []struct {
		name      string
		initiator *types.Account
		want      bool
	}{
		{"sender", acct("payer", types.RoleConsumer), true},
		{"recipient", acct("worker", types.RoleProvider), true},
		{"admin", acct("root", types.RoleAdmin), true},
		{"operator", acct("dispatcher", types.RoleOperator), true},
		{"stranger", acct("bystander", types.RoleConsumer), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := authz.RolePolicy{}.CanReleaseEscrow(context.Background(), esc, tc.initiator)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok, "release")

			ok, err = authz.RolePolicy{}.CanRefundEscrow(context.Background(), esc, tc.initiator)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok, "refund")
		})
	}
}

func TestAllowAll(t *testing.T) {
	ctx := context.Background()
	nobody := acct("nobody")
	esc := &types.Escrow{From: "a", To: "b"}

	checks := map[string]func() (bool, error){
		"transfer": func() (bool, error) {
			return authz.AllowAll{}.CanTransfer(ctx, nobody, nobody, nobody, 1, types.TransactionTypeTransfer)
		},
		"change roles": func() (bool, error) {
			return authz.AllowAll{}.CanChangeRoles(ctx, nobody, nobody, nil)
		},
		"credit": func() (bool, error) { return authz.AllowAll{}.CanCredit(ctx, nobody, nobody, 1) },
		"debit":  func() (bool, error) { return authz.AllowAll{}.CanDebit(ctx, nobody, nobody, 1) },
		"release": func() (bool, error) {
			return authz.AllowAll{}.CanReleaseEscrow(ctx, esc, nobody)
		},
		"refund": func() (bool, error) { return authz.AllowAll{}.CanRefundEscrow(ctx, esc, nobody) },
	}

	for name, check := range checks {
		ok, err := check()
		require.NoError(t, err, name)
		assert.True(t, ok, name)
	}
}
