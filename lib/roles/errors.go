package roles

import (
	"errors"
	"fmt"
)

// ErrNoAuthorizedRoles means the operator has no roles at all. It is a
// configuration problem that re-authenticating cannot fix.
var ErrNoAuthorizedRoles = errors.New("no authorized roles found for user")

// GrammarError is returned for a role attribute the identity provider
// formatted in a way that cannot be mapped to an account, env and role.
type GrammarError struct {
	Value   string
	Pattern string
}

func (e *GrammarError) Error() string {
	return fmt.Sprintf("%s is of an invalid pattern, it must match: %s to map account id -> run env -> role",
		e.Value, e.Pattern)
}
