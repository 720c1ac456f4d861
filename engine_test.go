package ledger_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
	"github.com/roboclear/ledger/store/memory"
	"github.com/roboclear/ledger/types"
)

// newEngine builds an engine on a fresh in-memory store with logging
// silenced. Options given by the test are applied afterwards, so they win.
func newEngine(t *testing.T, opts ...ledger.Option) *ledger.Engine {
	t.Helper()
	quiet := ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return ledger.New(memory.New(), append([]ledger.Option{quiet}, opts...)...)
}

// seedAccount creates an ACTIVE account holding both CONSUMER and PROVIDER
// so it can sit on either side of a transfer under the default policy.
func seedAccount(t *testing.T, eng *ledger.Engine, id string, balance int64) *types.Account {
	t.Helper()
	return seedWithRoles(t, eng, id, balance, types.RoleConsumer, types.RoleProvider)
}

func seedAdmin(t *testing.T, eng *ledger.Engine, id string) *types.Account {
	t.Helper()
	return seedWithRoles(t, eng, id, 0, types.RoleAdmin)
}

func seedWithRoles(t *testing.T, eng *ledger.Engine, id string, balance int64, roles ...types.Role) *types.Account {
	t.Helper()
	acct, err := eng.CreateAccount(context.Background(), ledger.CreateAccountParams{
		ID:             id,
		Name:           id,
		InitialBalance: &balance,
		Roles:          roles,
	})
	require.NoError(t, err)
	return acct
}

func getBalance(t *testing.T, eng *ledger.Engine, id string) types.Balance {
	t.Helper()
	b, err := eng.GetBalance(context.Background(), id)
	require.NoError(t, err)
	return b
}

func TestEngineStartStop(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx))
	require.Error(t, eng.Start(ctx), "second Start must be rejected")

	require.NoError(t, eng.Stop())
	require.ErrorIs(t, eng.Start(ctx), ledger.ErrStoreClosed, "the store is gone after Stop")
}

func TestEngineStopWithoutStart(t *testing.T) {
	eng := newEngine(t)
	require.NoError(t, eng.Stop())
}
