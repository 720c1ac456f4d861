package ledger

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

// Config tunes engine behavior. The zero value disables auditing and the
// maintenance worker; DefaultConfig is what New applies when no WithConfig
// option is given.
type Config struct {
	// AuditEnabled turns the append-only audit trail on. Mutating
	// operations write one entry each while enabled.
	AuditEnabled bool `env:"LEDGER_AUDIT_ENABLED" envDefault:"true"`

	// EscrowSweepInterval is how often Start's maintenance worker scans
	// for expired PENDING escrows and refunds them. Zero disables the
	// sweep; expired escrows are then only rejected at release time.
	EscrowSweepInterval time.Duration `env:"LEDGER_ESCROW_SWEEP_INTERVAL" envDefault:"0"`

	// DefaultAccountBalance is the opening balance assigned when an
	// account is created without an explicit one.
	DefaultAccountBalance int64 `env:"LEDGER_DEFAULT_ACCOUNT_BALANCE" envDefault:"0"`
}

func DefaultConfig() Config {
	return Config{AuditEnabled: true}
}

// FromEnv reads Config from LEDGER_* environment variables.
func FromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("FromEnv: %w", err)
	}
	return cfg, nil
}
