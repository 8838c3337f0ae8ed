package provider

import (
	"github.com/aws/aws-sdk-go/aws"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/segmentio/aws-figgy/internal/sessioncache"
	"github.com/segmentio/aws-figgy/lib/retry"
	"github.com/segmentio/aws-figgy/lib/roles"
)

// authenticateFunc performs one authentication attempt. forcePrompt asks
// the operator again for secrets that would otherwise be reused.
type authenticateFunc func(ctx aws.Context, role roles.AssumableRole, forcePrompt bool) (*sessioncache.Credential, error)

// sessions is the lookup, validate, authenticate loop shared by providers.
type sessions struct {
	cache       CredentialCache
	validator   CredentialValidator
	region      string
	maxAttempts int
}

func (s *sessions) get(ctx aws.Context, role roles.AssumableRole, prompt bool, authenticate authenticateFunc) (*Session, error) {
	logger := log.WithField("role", role.String())

	if !prompt {
		if cred, err := s.cache.Get(role); err == nil {
			if s.validator.IsValid(ctx, *cred) {
				logger.Debugf("using cached session %s", cred.ShortID())
				return newSession(role, *cred, s.region)
			}
			logger.Debug("cached session rejected by AWS")
		} else {
			logger.Debugf("no usable cached session: %s", err)
		}
	}

	maxAttempts := s.maxAttempts
	if maxAttempts == 0 {
		maxAttempts = MaxAuthAttempts
	}

	var cred *sessioncache.Credential
	err := retry.Policy{MaxAttempts: maxAttempts}.Do(ctx, func(attempt int) error {
		c, err := authenticate(ctx, role, prompt && attempt == 1)
		if err != nil {
			logger.WithField("attempt", attempt).Debugf("authentication failed: %s", err)
			return err
		}
		cred = c
		return nil
	}, isRecoverable)

	var exhausted *retry.ExhaustedError
	if xerrors.As(err, &exhausted) {
		return nil, &FatalError{Role: role.String(), Attempts: exhausted.Attempts, Last: exhausted.Last}
	} else if err != nil {
		return nil, err
	}

	if err := s.cache.Put(role, cred); err != nil {
		logger.Warnf("unable to cache session: %s", err)
	}
	logger.Debugf("new session %s expires at %s", cred.ShortID(), cred.Expiration)
	return newSession(role, *cred, s.region)
}
