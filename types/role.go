package types

// Role is a capability grant, not an identity. Accounts hold any combination:
// a machine that both buys and sells compute carries CONSUMER and PROVIDER.
type Role string

const (
	// RoleConsumer allows spending: outgoing transfers and escrow funding.
	RoleConsumer Role = "CONSUMER"
	// RoleProvider allows earning: receiving transfers and escrow payouts.
	RoleProvider Role = "PROVIDER"
	// RoleOperator allows acting on behalf of other accounts.
	RoleOperator Role = "OPERATOR"
	// RoleAdmin allows every operation, including direct debits and role
	// changes.
	RoleAdmin Role = "ADMIN"
)

// RoleSet is the set of roles granted to an account. Order is not
// significant; duplicates are tolerated and ignored.
type RoleSet []Role

// Has reports whether the set contains r.
func (s RoleSet) Has(r Role) bool {
	for _, have := range s {
		if have == r {
			return true
		}
	}
	return false
}

// HasAny reports whether the set contains at least one of the given roles.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// Valid reports whether every role in the set is a known role.
func (s RoleSet) Valid() bool {
	for _, r := range s {
		switch r {
		case RoleConsumer, RoleProvider, RoleOperator, RoleAdmin:
		default:
			return false
		}
	}
	return true
}
