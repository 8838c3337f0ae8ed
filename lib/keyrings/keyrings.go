// Package keyrings keeps the operator's secrets in the OS keyring: the
// identity provider password and the identity provider session cookie.
package keyrings

import (
	"fmt"

	"github.com/99designs/keyring"
	log "github.com/sirupsen/logrus"
)

// changing any of these will break keyring compatibility
const (
	keyringServiceName             = "figgy"
	keyringLibSecretCollectionName = "figgy"

	passwordKeyPrefix = "figgy-password-"
)

type Options struct {
	BackendType      string
	FileDir          string
	FilePasswordFunc func(prompt string) (string, error)
}

// Open opens the configured backend, or the first available one when no
// backend is named.
func Open(opts Options) (keyring.Keyring, error) {
	var allowedBackends []keyring.BackendType
	if opts.BackendType != "" {
		allowedBackends = append(allowedBackends, keyring.BackendType(opts.BackendType))
	}

	kr, err := keyring.Open(keyring.Config{
		AllowedBackends:          allowedBackends,
		KeychainTrustApplication: true,
		ServiceName:              keyringServiceName,
		LibSecretCollectionName:  keyringLibSecretCollectionName,
		FileDir:                  opts.FileDir,
		FilePasswordFunc:         opts.FilePasswordFunc,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return kr, nil
}

// AvailableBackends lists the backend names usable on this platform.
func AvailableBackends() []string {
	var names []string
	for _, b := range keyring.AvailableBackends() {
		names = append(names, string(b))
	}
	return names
}

// Secrets stores passwords and opaque session data in a keyring.
type Secrets struct {
	Keyring keyring.Keyring
}

// Password returns keyring.ErrKeyNotFound when no password is stored.
func (s *Secrets) Password(user string) (string, error) {
	item, err := s.Keyring.Get(passwordKeyPrefix + user)
	if err != nil {
		return "", err
	}
	return string(item.Data), nil
}

func (s *Secrets) PutPassword(user, password string) error {
	log.Debugf("keyring: storing password for %s", user)
	return s.Keyring.Set(keyring.Item{
		Key:                         passwordKeyPrefix + user,
		Label:                       "figgy password for " + user,
		Data:                        []byte(password),
		KeychainNotTrustApplication: false,
	})
}

// DeletePassword forgets the password; a missing one is not an error.
func (s *Secrets) DeletePassword(user string) error {
	return s.Delete(passwordKeyPrefix + user)
}

func (s *Secrets) Get(key string) ([]byte, error) {
	item, err := s.Keyring.Get(key)
	if err != nil {
		return nil, err
	}
	return item.Data, nil
}

func (s *Secrets) Put(key string, data []byte, label string) error {
	return s.Keyring.Set(keyring.Item{
		Key:                         key,
		Label:                       label,
		Data:                        data,
		KeychainNotTrustApplication: false,
	})
}

func (s *Secrets) Delete(key string) error {
	err := s.Keyring.Remove(key)
	if err == keyring.ErrKeyNotFound {
		return nil
	}
	return err
}
