// Package broker ties configuration, the credential cache and a session
// provider together into the operations the CLI exposes.
package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/segmentio/aws-figgy/internal/sessioncache"
	"github.com/segmentio/aws-figgy/lib/config"
	"github.com/segmentio/aws-figgy/lib/keyrings"
	"github.com/segmentio/aws-figgy/lib/oktaclient"
	"github.com/segmentio/aws-figgy/lib/provider"
	"github.com/segmentio/aws-figgy/lib/roles"
)

// Deps are the collaborators the broker cannot build from configuration
// alone. Nil AWS and identity fields are built from configuration.
type Deps struct {
	Prompter provider.Prompter
	Secrets  *keyrings.Secrets
	// MFA supplies Okta one time codes.
	MFA oktaclient.MFAInputs

	Validator   provider.CredentialValidator
	AWSClients  *provider.AWSClients
	STS         stsiface.STSAPI
	NewIdentity provider.IdentityFactory
}

type Broker struct {
	cfg      *config.Config
	cache    *sessioncache.FileStore
	provider provider.SessionProvider

	mu      sync.Mutex
	catalog roles.Catalog
}

// New builds the cache, the validator and the configured provider, then
// binds the cache to that provider.
func New(cfg *config.Config, deps Deps) (*Broker, error) {
	cache := sessioncache.NewFileStore(cfg.CacheFile, cfg.ExpiryWindow)

	validator := deps.Validator
	if validator == nil {
		validator = provider.NewValidator(cfg.Region)
	}

	var p provider.SessionProvider
	var err error
	switch cfg.Provider {
	case config.ProviderBastion:
		p, err = newDirect(cfg, deps, cache, validator)
	case config.ProviderOkta:
		p, err = newFederated(cfg, deps, cache, validator)
	default:
		err = xerrors.Errorf("unknown provider %q: %w", cfg.Provider, config.ErrInvalid)
	}
	if err != nil {
		return nil, err
	}

	wiped, err := cache.Rebind(p.Name())
	if err != nil {
		return nil, xerrors.Errorf("binding session cache: %w", err)
	}
	if wiped {
		log.Infof("discarded sessions cached by another provider, now using %s", p.Name())
	}

	return &Broker{cfg: cfg, cache: cache, provider: p}, nil
}

func newDirect(cfg *config.Config, deps Deps, cache *sessioncache.FileStore, validator provider.CredentialValidator) (*provider.Direct, error) {
	var clients provider.AWSClients
	if deps.AWSClients != nil {
		clients = *deps.AWSClients
	} else {
		var err error
		if clients, err = provider.ClientsFromProfile(cfg.AWSProfile, cfg.Region); err != nil {
			return nil, err
		}
	}
	return provider.NewDirect(cache, validator, clients, deps.Prompter, provider.DirectOptions{
		User:            cfg.User,
		Profile:         cfg.AWSProfile,
		Region:          cfg.Region,
		MFAEnabled:      cfg.MFAEnabled,
		SessionDuration: cfg.SessionDuration,
	})
}

func newFederated(cfg *config.Config, deps Deps, cache *sessioncache.FileStore, validator provider.CredentialValidator) (*provider.Federated, error) {
	if deps.Secrets == nil {
		return nil, xerrors.Errorf("the okta provider needs a keyring: %w", provider.ErrConfig)
	}

	stsClient := deps.STS
	if stsClient == nil {
		var err error
		if stsClient, err = provider.AnonymousSTS(cfg.Region); err != nil {
			return nil, err
		}
	}

	newIdentity := deps.NewIdentity
	if newIdentity == nil {
		newIdentity = func(user string) (provider.IdentitySession, error) {
			return oktaclient.New(oktaclient.Credentials{
				Domain:     cfg.Okta.Domain,
				Username:   user,
				FactorType: cfg.Okta.FactorType,
			}, deps.Secrets, deps.MFA, nil)
		}
	}

	return provider.NewFederated(cache, validator, stsClient, newIdentity, deps.Secrets, deps.Prompter, provider.FederatedOptions{
		User:            cfg.User,
		AppLink:         cfg.Okta.AppLink,
		Region:          cfg.Region,
		SessionDuration: cfg.SessionDuration,
	})
}

// ProviderName is the name of the configured session provider.
func (b *Broker) ProviderName() string {
	return b.provider.Name()
}

// Cache exposes the credential cache for status reporting.
func (b *Broker) Cache() *sessioncache.FileStore {
	return b.cache
}

// AssumableRoles returns the operator's role catalog. It is fetched once
// per broker.
func (b *Broker) AssumableRoles(ctx context.Context) (roles.Catalog, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.catalog != nil {
		return b.catalog, nil
	}

	catalog, err := b.provider.GetAssumableRoles(ctx)
	if err != nil {
		return nil, err
	}
	log.Debugf("%s provider granted %d roles", b.provider.Name(), len(catalog))
	b.catalog = catalog
	return catalog, nil
}

// Resolve maps an env/role selection to an assumable role. Empty values
// fall back to the configured defaults.
func (b *Broker) Resolve(ctx context.Context, env, role string) (roles.AssumableRole, error) {
	if env == "" {
		env = b.cfg.DefaultEnv
	}
	if role == "" {
		role = b.cfg.DefaultRole
	}
	if env == "" || role == "" {
		return roles.AssumableRole{}, fmt.Errorf("both an env and a role are required: %w", config.ErrInvalid)
	}

	catalog, err := b.AssumableRoles(ctx)
	if err != nil {
		return roles.AssumableRole{}, err
	}
	return catalog.Find(env, role)
}

// Session returns credentials for env/role. prompt skips the cache and
// asks the operator to authenticate again.
func (b *Broker) Session(ctx context.Context, env, role string, prompt bool) (*provider.Session, error) {
	assumable, err := b.Resolve(ctx, env, role)
	if err != nil {
		return nil, err
	}
	return b.provider.GetSession(ctx, assumable, prompt)
}

// Logout wipes cached credentials and, for providers that keep one, the
// identity provider session.
func (b *Broker) Logout(ctx context.Context) error {
	if l, ok := b.provider.(interface{ Logout(context.Context) error }); ok {
		return l.Logout(ctx)
	}
	return b.provider.CleanupSessionCache()
}
