package provider

import (
	"encoding/base64"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/segmentio/aws-figgy/internal/sessioncache"
	"github.com/segmentio/aws-figgy/lib/roles"
)

var theDistantFuture = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T) *sessioncache.FileStore {
	dir, err := ioutil.TempDir("", "figgy-provider")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return sessioncache.NewFileStore(filepath.Join(dir, "sessions.json"), 0)
}

func testRole(account, env, role string) roles.AssumableRole {
	return roles.AssumableRole{
		RunEnv:       roles.RunEnv{Env: env, AccountID: account},
		Role:         roles.Role{Name: role, FullName: roles.DefaultRolePrefix + env + "-" + role},
		AccountID:    account,
		PrincipalARN: "arn:aws:iam::" + account + ":saml-provider/OKTA",
	}
}

func samlAssertion(values ...string) string {
	var attrs strings.Builder
	for _, v := range values {
		fmt.Fprintf(&attrs, `<saml2:AttributeValue>%s</saml2:AttributeValue>`, v)
	}
	doc := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<saml2p:Response xmlns:saml2p="urn:oasis:names:tc:SAML:2.0:protocol" Version="2.0">
  <saml2:Assertion xmlns:saml2="urn:oasis:names:tc:SAML:2.0:assertion" Version="2.0">
    <saml2:AttributeStatement>
      <saml2:Attribute Name="https://aws.amazon.com/SAML/Attributes/Role">%s</saml2:Attribute>
    </saml2:AttributeStatement>
  </saml2:Assertion>
</saml2p:Response>`, attrs.String())
	return base64.StdEncoding.EncodeToString([]byte(doc))
}

func samlPage(assertion string) []byte {
	return []byte(fmt.Sprintf(`<html><body><form method="POST">
<input name="SAMLResponse" type="hidden" value="%s"/>
</form></body></html>`, assertion))
}

func grant(role roles.AssumableRole) string {
	return role.PrincipalARN + "," + role.RoleARN()
}
