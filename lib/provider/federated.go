package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/99designs/keyring"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	aws_session "github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/segmentio/aws-figgy/internal/sessioncache"
	"github.com/segmentio/aws-figgy/lib/oktaclient"
	"github.com/segmentio/aws-figgy/lib/retry"
	"github.com/segmentio/aws-figgy/lib/roles"
)

const (
	FederatedProviderName = "okta"

	// assertions shorter than this are treated as an expired Okta session
	minAssertionLength = 20
)

// IdentitySession is an authenticated session with the identity provider.
type IdentitySession interface {
	Session(ctx context.Context, forceNew bool) (string, error)
	FetchAppLink(ctx context.Context, link string) ([]byte, error)
	ForgetSession() error
	SetPassword(password string)
}

// IdentityFactory opens an identity provider session for user.
type IdentityFactory func(user string) (IdentitySession, error)

type FederatedOptions struct {
	User            string
	AppLink         string
	Region          string
	SessionDuration time.Duration
	MaxAuthAttempts int
}

// updates federated provider options with package provided defaults.
func (o *FederatedOptions) ApplyDefaults() {
	if o.SessionDuration == 0 {
		o.SessionDuration = DefaultSessionDuration
	}
	if o.MaxAuthAttempts == 0 {
		o.MaxAuthAttempts = MaxAuthAttempts
	}
}

// validates federated provider options.
func (o *FederatedOptions) Validate() error {
	if o.AppLink == "" {
		return fmt.Errorf("okta app link is required: %w", ErrConfig)
	}
	if o.SessionDuration < MinSessionDuration || o.SessionDuration > MaxSessionDuration {
		return fmt.Errorf("session duration must be between %s and %s: %w", MinSessionDuration, MaxSessionDuration, ErrConfig)
	}
	return nil
}

// AnonymousSTS returns an STS client without credentials, as
// AssumeRoleWithSAML is authenticated by the assertion alone.
func AnonymousSTS(region string) (stsiface.STSAPI, error) {
	awsSession, err := aws_session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.AnonymousCredentials,
	})
	if err != nil {
		return nil, err
	}
	return sts.New(awsSession), nil
}

// Federated exchanges Okta SAML assertions for role credentials.
type Federated struct {
	sessions
	opts        FederatedOptions
	sts         stsiface.STSAPI
	newIdentity IdentityFactory
	passwords   PasswordStore
	prompter    Prompter

	// mu serializes identity provider traffic, so concurrent session
	// requests share one login.
	mu       sync.Mutex
	user     string
	identity IdentitySession
}

func NewFederated(cache CredentialCache, validator CredentialValidator, stsClient stsiface.STSAPI, newIdentity IdentityFactory, passwords PasswordStore, prompter Prompter, opts FederatedOptions) (*Federated, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Federated{
		sessions: sessions{
			cache:       cache,
			validator:   validator,
			region:      opts.Region,
			maxAttempts: opts.MaxAuthAttempts,
		},
		opts:        opts,
		sts:         stsClient,
		newIdentity: newIdentity,
		passwords:   passwords,
		prompter:    prompter,
		user:        opts.User,
	}, nil
}

func (f *Federated) Name() string {
	return FederatedProviderName
}

func (f *Federated) GetSession(ctx aws.Context, role roles.AssumableRole, prompt bool) (*Session, error) {
	return f.get(ctx, role, prompt, f.authenticate)
}

func (f *Federated) CleanupSessionCache() error {
	return f.cache.Wipe()
}

// Logout wipes the credential cache and forgets the identity provider
// session. The session is stored per user, so an unconfigured username is
// prompted for.
func (f *Federated) Logout(ctx context.Context) error {
	if err := f.CleanupSessionCache(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.resolveUser(ctx); err != nil {
		return err
	}
	identity, err := f.identitySession()
	if err != nil {
		return err
	}
	return identity.ForgetSession()
}

// GetAssumableRoles reads the roles granted in a SAML assertion. A stale
// identity session is retried like any other authentication failure.
func (f *Federated) GetAssumableRoles(ctx aws.Context) (roles.Catalog, error) {
	var catalog roles.Catalog
	err := retry.Policy{MaxAttempts: f.maxAttempts}.Do(ctx, func(attempt int) error {
		assertion, err := f.assertion(ctx, false)
		if err != nil {
			return err
		}
		catalog, err = roles.FromSAML(assertion)
		return err
	}, isRecoverable)

	var exhausted *retry.ExhaustedError
	if xerrors.As(err, &exhausted) {
		return nil, &FatalError{Role: "(listing roles)", Attempts: exhausted.Attempts, Last: exhausted.Last}
	}
	return catalog, err
}

func (f *Federated) authenticate(ctx aws.Context, role roles.AssumableRole, forcePrompt bool) (*sessioncache.Credential, error) {
	assertion, err := f.assertion(ctx, forcePrompt)
	if err != nil {
		return nil, err
	}

	catalog, err := roles.FromSAML(assertion)
	if err != nil {
		return nil, err
	}
	granted, ok := findGranted(catalog, role)
	if !ok {
		return nil, &AccessDeniedError{
			Role: role.RoleARN(),
			Err:  fmt.Errorf("role is not granted to %s by the identity provider", f.user),
		}
	}

	log.WithField("role", granted.RoleARN()).Debug("assuming role with SAML")
	out, err := f.sts.AssumeRoleWithSAMLWithContext(ctx, &sts.AssumeRoleWithSAMLInput{
		PrincipalArn:    aws.String(granted.PrincipalARN),
		RoleArn:         aws.String(granted.RoleARN()),
		SAMLAssertion:   aws.String(assertion),
		DurationSeconds: durationSeconds(f.opts.SessionDuration),
	})
	if err != nil {
		if code := awsErrorCode(err); code == "AccessDenied" || code == "AccessDeniedException" {
			return nil, &AccessDeniedError{Role: granted.RoleARN(), Err: err}
		}
		return nil, xerrors.Errorf("assuming %s with SAML: %w", granted.RoleARN(), err)
	}

	cred := sessioncache.FromSTS(out.Credentials)
	return &cred, nil
}

func findGranted(catalog roles.Catalog, role roles.AssumableRole) (roles.AssumableRole, bool) {
	for _, r := range catalog {
		if r.Key() == role.Key() || (role.AccountID == "" && r.Matches(role.RunEnv.Env, role.Role.Name)) {
			return r, true
		}
	}
	return roles.AssumableRole{}, false
}

// assertion fetches a fresh SAML assertion, logging in to the identity
// provider first when its session is gone or forceNew is set.
func (f *Federated) assertion(ctx aws.Context, forceNew bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.resolveUser(ctx); err != nil {
		return "", err
	}
	identity, err := f.identitySession()
	if err != nil {
		return "", err
	}
	password, err := f.password(ctx, forceNew)
	if err != nil {
		return "", err
	}
	identity.SetPassword(password)

	if _, err := identity.Session(ctx, forceNew); err != nil {
		if xerrors.Is(err, oktaclient.ErrInvalidCredentials) {
			log.Warn("identity provider rejected the stored password")
			if derr := f.passwords.DeletePassword(f.user); derr != nil {
				log.Debugf("unable to delete stored password: %s", derr)
			}
		}
		return "", xerrors.Errorf("logging in to identity provider: %w", err)
	}

	page, err := identity.FetchAppLink(ctx, f.opts.AppLink)
	if err != nil {
		return "", xerrors.Errorf("fetching app link: %w", err)
	}
	assertion, err := roles.AssertionFromHTML(page)
	if err != nil || len(assertion) < minAssertionLength {
		if ferr := identity.ForgetSession(); ferr != nil {
			log.Debugf("unable to forget identity session: %s", ferr)
		}
		return "", xerrors.Errorf("invalid assertion returned from identity provider: %w", ErrInvalidSession)
	}
	return assertion, nil
}

// resolveUser prompts for the Okta username once when none is configured.
func (f *Federated) resolveUser(ctx context.Context) error {
	if f.user != "" {
		return nil
	}
	user, err := f.prompter.Username(ctx)
	if err != nil {
		return err
	}
	f.user = user
	return nil
}

func (f *Federated) identitySession() (IdentitySession, error) {
	if f.identity != nil {
		return f.identity, nil
	}
	identity, err := f.newIdentity(f.user)
	if err != nil {
		return nil, xerrors.Errorf("opening identity session: %w", err)
	}
	f.identity = identity
	return identity, nil
}

// password returns the stored password, prompting for and storing a new one
// when none is stored or reprompt is set.
func (f *Federated) password(ctx context.Context, reprompt bool) (string, error) {
	stored, err := f.passwords.Password(f.user)
	if err == nil && stored != "" && !reprompt {
		return stored, nil
	}
	if err != nil && err != keyring.ErrKeyNotFound {
		log.Debugf("reading stored password: %s", err)
	}

	password, err := f.prompter.Password(ctx, f.user)
	if err != nil {
		return "", err
	}
	if err := f.passwords.PutPassword(f.user, password); err != nil {
		log.Warnf("unable to store password: %s", err)
	}
	return password, nil
}
