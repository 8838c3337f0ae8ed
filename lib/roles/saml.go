package roles

import (
	"encoding/base64"
	"encoding/xml"
	"errors"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/xerrors"
)

const RoleAttributeName = "https://aws.amazon.com/SAML/Attributes/Role"

// RoleGrammar is the shape every role attribute value must have, e.g.
//
//	arn:aws:iam::106481321259:saml-provider/OKTA,arn:aws:iam::106481321259:role/figgy-dev-data
//
// Groups: account id, full role name, env, role.
const RoleGrammar = `^arn:aws:iam::([0-9]+):saml-provider/\w+,arn:aws:iam::.*role/(\w+-(\w+)-(\w+))`

var roleGrammarRegex = regexp.MustCompile(RoleGrammar)

// ErrNoAssertion means the page held no SAMLResponse form input.
var ErrNoAssertion = errors.New("no SAML assertion found in response")

type Response struct {
	XMLName   xml.Name
	Assertion Assertion `xml:"Assertion"`
}

type Assertion struct {
	XMLName            xml.Name
	AttributeStatement AttributeStatement
}

type AttributeStatement struct {
	XMLName    xml.Name
	Attributes []Attribute `xml:"Attribute"`
}

type Attribute struct {
	XMLName         xml.Name
	Name            string           `xml:",attr"`
	AttributeValues []AttributeValue `xml:"AttributeValue"`
}

type AttributeValue struct {
	XMLName xml.Name
	Value   string `xml:",innerxml"`
}

// inputValue walks the document depth first and returns the value of the
// first input element named name.
func inputValue(n *html.Node, name string) string {
	if n.Type == html.ElementNode && n.Data == "input" {
		var isMatch bool
		var val string
		for _, a := range n.Attr {
			switch a.Key {
			case "name":
				isMatch = a.Val == name
			case "value":
				val = a.Val
			}
		}
		if isMatch {
			return val
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if val := inputValue(c, name); val != "" {
			return val
		}
	}
	return ""
}

// AssertionFromHTML extracts the base64 SAML assertion that identity
// providers post back to AWS through a hidden SAMLResponse input.
func AssertionFromHTML(body []byte) (string, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", xerrors.Errorf("parsing SAML response page: %w", err)
	}

	val := inputValue(doc, "SAMLResponse")
	if val == "" {
		return "", ErrNoAssertion
	}
	val = strings.Replace(val, "&#x2b;", "+", -1)
	val = strings.Replace(val, "&#x3d;", "=", -1)
	return val, nil
}

// DecodeAssertion base64 decodes and parses a SAML assertion.
func DecodeAssertion(assertion string) (*Response, error) {
	data, err := base64.StdEncoding.DecodeString(assertion)
	if err != nil {
		return nil, xerrors.Errorf("decoding SAML assertion: %w", err)
	}

	var resp Response
	if err := xml.Unmarshal(data, &resp); err != nil {
		return nil, xerrors.Errorf("parsing SAML assertion: %w", err)
	}
	return &resp, nil
}

// FromSAML builds the catalog from the role attribute of an assertion. A
// single value that does not match RoleGrammar fails the whole assertion.
func FromSAML(assertion string) (Catalog, error) {
	resp, err := DecodeAssertion(assertion)
	if err != nil {
		return nil, err
	}

	var catalog Catalog
	seen := map[string]bool{}
	for _, a := range resp.Assertion.AttributeStatement.Attributes {
		if a.Name != RoleAttributeName {
			continue
		}
		for _, v := range a.AttributeValues {
			log.Debugf("Got SAML role attribute: %s", v.Value)
			role, err := parseRoleAttribute(strings.TrimSpace(v.Value))
			if err != nil {
				return nil, err
			}
			if seen[role.Key()] {
				continue
			}
			seen[role.Key()] = true
			catalog = append(catalog, role)
		}
	}

	if len(catalog) == 0 {
		return nil, ErrNoAuthorizedRoles
	}
	return catalog, nil
}

func parseRoleAttribute(value string) (AssumableRole, error) {
	groups := roleGrammarRegex.FindStringSubmatch(value)
	if groups == nil {
		return AssumableRole{}, &GrammarError{Value: value, Pattern: RoleGrammar}
	}
	accountID, fullName, env, role := groups[1], groups[2], groups[3], groups[4]

	// value is "<principal arn>,<role arn>"
	tokens := strings.SplitN(value, ",", 2)
	return AssumableRole{
		RunEnv:       RunEnv{Env: env, AccountID: accountID},
		Role:         Role{Name: role, FullName: fullName},
		AccountID:    accountID,
		PrincipalARN: tokens[0],
		ARN:          tokens[1],
	}, nil
}
