package mock

import (
	"context"
	"sync"
)

// Identity fakes an identity provider session that serves one SAML page.
type Identity struct {
	// Page is returned by FetchAppLink.
	Page []byte
	// SessionErrors are returned, in order, by the next Session calls.
	SessionErrors []error
	// FetchErrors are returned, in order, by the next FetchAppLink calls.
	FetchErrors []error

	mu          sync.Mutex
	Passwords   []string
	ForcedNew   int
	Sessions    int
	Fetches     int
	Forgotten   int
	LastAppLink string
}

func (i *Identity) Session(ctx context.Context, forceNew bool) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Sessions++
	if forceNew {
		i.ForcedNew++
	}
	if len(i.SessionErrors) > 0 {
		err := i.SessionErrors[0]
		i.SessionErrors = i.SessionErrors[1:]
		if err != nil {
			return "", err
		}
	}
	return "sid", nil
}

func (i *Identity) FetchAppLink(ctx context.Context, link string) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Fetches++
	i.LastAppLink = link
	if len(i.FetchErrors) > 0 {
		err := i.FetchErrors[0]
		i.FetchErrors = i.FetchErrors[1:]
		if err != nil {
			return nil, err
		}
	}
	return i.Page, nil
}

func (i *Identity) ForgetSession() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Forgotten++
	return nil
}

func (i *Identity) SetPassword(password string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Passwords = append(i.Passwords, password)
}
