package roles

import (
	"sort"

	log "github.com/sirupsen/logrus"
)

// FromDirectory joins the roles an operator is authorized for with every
// known environment. accounts maps env name to account id. Full role names
// are prefix + env + "-" + role.
func FromDirectory(authorized []string, accounts map[string]string, prefix string) (Catalog, error) {
	if len(authorized) == 0 {
		return nil, ErrNoAuthorizedRoles
	}

	envs := make([]string, 0, len(accounts))
	for env := range accounts {
		envs = append(envs, env)
	}
	sort.Strings(envs)

	var catalog Catalog
	for _, env := range envs {
		runEnv := RunEnv{Env: env, AccountID: accounts[env]}
		for _, role := range authorized {
			catalog = append(catalog, AssumableRole{
				RunEnv:    runEnv,
				Role:      Role{Name: role, FullName: prefix + env + "-" + role},
				AccountID: runEnv.AccountID,
			})
		}
	}
	log.Debugf("built %d assumable roles from %d roles x %d envs", len(catalog), len(authorized), len(envs))
	return catalog, nil
}
