package tally

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Role is the authorization level required by an operation.
type Role int

const (
	// RoleAnyone allows any caller.
	RoleAnyone Role = iota
	// RoleVoter requires the caller to be a registered voter.
	RoleVoter
	// RoleAdmin requires the caller to be the round admin.
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAnyone:
		return "anyone"
	case RoleVoter:
		return "voter"
	case RoleAdmin:
		return "admin"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// authorize evaluates the role predicate for a caller. It is the first check
// of every mutating operation.
func (c *Contract) authorize(caller common.Address, required Role) error {
	switch required {
	case RoleAnyone:
		return nil
	case RoleVoter:
		status, err := c.voterStatus(caller)
		if err != nil {
			return err
		}
		if !status.IsRegistered {
			return fmt.Errorf("%w: %s is not a registered voter", ErrUnauthorized, caller)
		}
		return nil
	case RoleAdmin:
		round, err := c.loadRound()
		if err != nil {
			return err
		}
		if caller != round.Admin {
			return fmt.Errorf("%w: %s is not the admin", ErrUnauthorized, caller)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown role %s", ErrUnauthorized, required)
}
