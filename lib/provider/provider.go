// Package provider obtains short-lived AWS credentials for assumable roles,
// reusing cached credentials while AWS still accepts them and falling back to
// an identity provider when it does not.
package provider

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	aws_session "github.com/aws/aws-sdk-go/aws/session"

	"github.com/segmentio/aws-figgy/internal/sessioncache"
	"github.com/segmentio/aws-figgy/lib/roles"
)

const (
	// MaxAuthAttempts bounds authentication attempts per session request.
	MaxAuthAttempts = 5

	MinSessionDuration     = 15 * time.Minute
	MaxSessionDuration     = 12 * time.Hour
	DefaultSessionDuration = time.Hour
)

// SessionProvider is implemented by each way of authenticating to AWS.
type SessionProvider interface {
	// Name identifies the provider; it is recorded in the session cache.
	Name() string
	// GetSession returns a session for role. prompt forces a fresh
	// authentication instead of reusing a cached credential.
	GetSession(ctx aws.Context, role roles.AssumableRole, prompt bool) (*Session, error)
	GetAssumableRoles(ctx aws.Context) (roles.Catalog, error)
	CleanupSessionCache() error
}

// CredentialCache persists credentials between runs. Any Get error is a
// cache miss.
type CredentialCache interface {
	Get(sessioncache.Key) (*sessioncache.Credential, error)
	Put(sessioncache.Key, *sessioncache.Credential) error
	Wipe() error
}

// CredentialValidator reports whether AWS still accepts a credential.
type CredentialValidator interface {
	IsValid(ctx aws.Context, cred sessioncache.Credential) bool
}

// Prompter asks the operator for input.
type Prompter interface {
	Username(ctx context.Context) (string, error)
	Password(ctx context.Context, user string) (string, error)
	MFACode(ctx context.Context) (string, error)
}

// PasswordStore keeps the operator's identity provider password.
type PasswordStore interface {
	Password(user string) (string, error)
	PutPassword(user, password string) error
	DeletePassword(user string) error
}

// Session is a usable AWS session for one assumable role.
type Session struct {
	Role       roles.AssumableRole
	Credential sessioncache.Credential
	Region     string
	AWS        *aws_session.Session
}

func newSession(role roles.AssumableRole, cred sessioncache.Credential, region string) (*Session, error) {
	awsSession, err := aws_session.NewSession(awsConfig(cred, region))
	if err != nil {
		return nil, err
	}
	return &Session{
		Role:       role,
		Credential: cred,
		Region:     region,
		AWS:        awsSession,
	}, nil
}

// Value returns the credential in aws-sdk form.
func (s *Session) Value() credentials.Value {
	return credentials.Value{
		AccessKeyID:     s.Credential.AccessKeyID,
		SecretAccessKey: s.Credential.SecretAccessKey,
		SessionToken:    s.Credential.SessionToken,
		ProviderName:    "figgy",
	}
}

func awsConfig(cred sessioncache.Credential, region string) *aws.Config {
	config := &aws.Config{Credentials: credentials.NewStaticCredentials(
		cred.AccessKeyID,
		cred.SecretAccessKey,
		cred.SessionToken,
	)}
	if region != "" {
		config.WithRegion(region)
	}
	return config
}

func durationSeconds(d time.Duration) *int64 {
	if d == 0 {
		d = DefaultSessionDuration
	}
	return aws.Int64(int64(d.Seconds()))
}
