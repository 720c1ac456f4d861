package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger"
)

func TestDefaultConfig(t *testing.T) {
	cfg := ledger.DefaultConfig()
	assert.True(t, cfg.AuditEnabled)
	assert.Zero(t, cfg.EscrowSweepInterval)
	assert.Zero(t, cfg.DefaultAccountBalance)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LEDGER_AUDIT_ENABLED", "false")
	t.Setenv("LEDGER_ESCROW_SWEEP_INTERVAL", "45s")
	t.Setenv("LEDGER_DEFAULT_ACCOUNT_BALANCE", "2500")

	cfg, err := ledger.FromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.AuditEnabled)
	assert.Equal(t, 45*time.Second, cfg.EscrowSweepInterval)
	assert.Equal(t, int64(2500), cfg.DefaultAccountBalance)
}

func TestConfigFromEnv_BadValue(t *testing.T) {
	t.Setenv("LEDGER_ESCROW_SWEEP_INTERVAL", "often")

	_, err := ledger.FromEnv()
	require.Error(t, err)
}

func TestConfigDefaultAccountBalance(t *testing.T) {
	eng := newEngine(t, ledger.WithConfig(ledger.Config{
		AuditEnabled:          true,
		DefaultAccountBalance: 250,
	}))
	ctx := context.Background()

	acct, err := eng.CreateAccount(ctx, ledger.CreateAccountParams{Name: "funded"})
	require.NoError(t, err)
	assert.Equal(t, int64(250), acct.Balance)

	// An explicit opening balance wins, zero included.
	zero := int64(0)
	acct, err = eng.CreateAccount(ctx, ledger.CreateAccountParams{Name: "empty", InitialBalance: &zero})
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.Balance)
}
