package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store"
	"github.com/roboclear/ledger/types"
)

func testAccountRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()

	maxTransfer, minBalance := int64(50_000), int64(100)
	a := &types.Account{
		ID:            "agent-gpu-1",
		Name:          "GPU worker 1",
		Balance:       1500,
		FrozenBalance: 250,
		Roles:         types.RoleSet{types.RoleConsumer, types.RoleProvider},
		Status:        types.AccountStatusActive,
		Limits:        &types.Limits{MaxTransferAmount: &maxTransfer, MinBalance: &minBalance},
		Metadata:      map[string]string{"model": "relay-7b", "region": "eu-west"},
		Tags:          []string{"gpu", "tier-2"},
		CreatedAt:     at(0),
		UpdatedAt:     at(0),
	}
	require.NoError(t, s.CreateAccount(ctx, a))

	got, err := s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	equalAccount(t, a, got)

	require.ErrorIs(t, s.CreateAccount(ctx, a), ledger.ErrAccountExists)

	// UpdateAccount replaces everything except the balances, whatever the
	// caller put in those fields.
	upd := *a
	upd.Name = "GPU worker 1b"
	upd.Status = types.AccountStatusFrozen
	upd.Roles = types.RoleSet{types.RoleProvider}
	upd.Limits = nil
	upd.Metadata = map[string]string{"model": "relay-13b"}
	upd.Tags = []string{"gpu"}
	upd.Balance = 999_999
	upd.FrozenBalance = 999_999
	upd.UpdatedAt = at(5)
	require.NoError(t, s.UpdateAccount(ctx, &upd))

	got, err = s.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	want := upd
	want.Balance, want.FrozenBalance = 1500, 250
	equalAccount(t, &want, got)

	_, err = s.GetAccount(ctx, "ghost")
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
	require.ErrorIs(t, s.UpdateAccount(ctx, &types.Account{ID: "ghost"}), ledger.ErrAccountNotFound)
	require.ErrorIs(t, s.DeleteAccount(ctx, "ghost"), ledger.ErrAccountNotFound)

	require.NoError(t, s.DeleteAccount(ctx, a.ID))
	_, err = s.GetAccount(ctx, a.ID)
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func testAccountFilters(t *testing.T, s store.Store) {
	ctx := context.Background()

	seed := []*types.Account{
		{ID: "relay-1", Status: types.AccountStatusActive, Roles: types.RoleSet{types.RoleConsumer}, Tags: []string{"gpu", "eu"}},
		{ID: "relay-2", Status: types.AccountStatusActive, Roles: types.RoleSet{types.RoleProvider}, Tags: []string{"gpu"}},
		{ID: "relay-3", Status: types.AccountStatusFrozen, Roles: types.RoleSet{types.RoleConsumer, types.RoleProvider}, Tags: []string{"cpu"}},
		{ID: "relay-4", Status: types.AccountStatusActive, Roles: types.RoleSet{types.RoleAdmin}},
		{ID: "relay-5", Status: types.AccountStatusClosed, Roles: types.RoleSet{types.RoleProvider}, Tags: []string{"gpu", "eu"}},
	}
	for i, a := range seed {
		a.Name = a.ID
		a.CreatedAt = at(i)
		a.UpdatedAt = at(i)
		putAccount(t, s, a)
	}

	tests := []struct {
		name   string
		filter store.AccountFilter
		want   []string
	}{
		{
			name: "all oldest first",
			want: []string{"relay-1", "relay-2", "relay-3", "relay-4", "relay-5"},
		},
		{
			name:   "by status",
			filter: store.AccountFilter{Status: types.AccountStatusActive},
			want:   []string{"relay-1", "relay-2", "relay-4"},
		},
		{
			name:   "by role",
			filter: store.AccountFilter{Role: types.RoleProvider},
			want:   []string{"relay-2", "relay-3", "relay-5"},
		},
		{
			name:   "by tag",
			filter: store.AccountFilter{Tag: "eu"},
			want:   []string{"relay-1", "relay-5"},
		},
		{
			name:   "status and role combined",
			filter: store.AccountFilter{Status: types.AccountStatusActive, Role: types.RoleConsumer},
			want:   []string{"relay-1"},
		},
		{
			name:   "limit",
			filter: store.AccountFilter{Limit: 2},
			want:   []string{"relay-1", "relay-2"},
		},
		{
			name:   "limit with offset",
			filter: store.AccountFilter{Limit: 2, Offset: 2},
			want:   []string{"relay-3", "relay-4"},
		},
		{
			name:   "offset without limit",
			filter: store.AccountFilter{Offset: 4},
			want:   []string{"relay-5"},
		},
		{
			name:   "no match",
			filter: store.AccountFilter{Tag: "none"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListAccounts(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, accountIDs(got))
		})
	}
}
