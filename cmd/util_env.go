package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/segmentio/aws-figgy/lib/provider"
)

type kvEnv map[string]string

func (e kvEnv) LoadFromEnviron(kevs ...string) {
	for _, kev := range kevs {
		kv := strings.SplitN(kev, "=", 2)
		if len(kv) != 2 {
			// skip invalid
			continue
		}
		e[kv[0]] = kv[1]
	}
}

// Environ returns the variables sorted by name.
func (e kvEnv) Environ() []string {
	r := []string{}
	for k, v := range e {
		r = append(r, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(r)
	return r
}

// AddSession sets the credential and figgy context variables of sess.
func (e kvEnv) AddSession(sess *provider.Session) {
	e["AWS_ACCESS_KEY_ID"] = sess.Credential.AccessKeyID
	e["AWS_SECRET_ACCESS_KEY"] = sess.Credential.SecretAccessKey
	if sess.Credential.SessionToken != "" {
		e["AWS_SESSION_TOKEN"] = sess.Credential.SessionToken
		e["AWS_SECURITY_TOKEN"] = sess.Credential.SessionToken
	}
	if sess.Region != "" {
		e["AWS_REGION"] = sess.Region
		e["AWS_DEFAULT_REGION"] = sess.Region
	}

	e["FIGGY_ENV"] = sess.Role.RunEnv.Env
	e["FIGGY_ROLE"] = sess.Role.Role.Name
	e["FIGGY_ROLE_ARN"] = sess.Role.RoleARN()
	e["FIGGY_SESSION_EXPIRATION"] = fmt.Sprintf("%d", sess.Credential.Expiration.Unix())
}

// Keys returns the variable names, sorted.
func (e kvEnv) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
