package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/segmentio/aws-figgy/internal/mock"
	"github.com/segmentio/aws-figgy/internal/sessioncache"
	"github.com/segmentio/aws-figgy/lib/prompt"
	"github.com/segmentio/aws-figgy/lib/retry"
	"github.com/segmentio/aws-figgy/lib/roles"
)

type authCall struct {
	forcePrompt bool
}

// scriptedAuth fails with errs in order, then hands out a credential.
type scriptedAuth struct {
	errs  []error
	calls []authCall
}

func (a *scriptedAuth) authenticate(ctx context.Context, role roles.AssumableRole, forcePrompt bool) (*sessioncache.Credential, error) {
	a.calls = append(a.calls, authCall{forcePrompt: forcePrompt})
	if len(a.errs) > 0 {
		err := a.errs[0]
		a.errs = a.errs[1:]
		return nil, err
	}
	return &sessioncache.Credential{
		AccessKeyID:     "ASIANEW",
		SecretAccessKey: "secret",
		SessionToken:    "token",
		Expiration:      theDistantFuture,
	}, nil
}

type failingCache struct {
	CredentialCache
}

func (failingCache) Put(sessioncache.Key, *sessioncache.Credential) error {
	return errors.New("disk full")
}

func TestSessionsGet(t *testing.T) {
	ctx := context.Background()
	role := testRole("106481321259", "dev", "data")
	cached := &sessioncache.Credential{AccessKeyID: "ASIACACHED", Expiration: theDistantFuture}

	t.Run("valid cached credential is reused", func(t *testing.T) {
		cache := newTestCache(t)
		require.NoError(t, cache.Put(role, cached))
		validator := mock.NewValidator()
		validator.Valid["ASIACACHED"] = true
		auth := &scriptedAuth{}

		s := sessions{cache: cache, validator: validator}
		sess, err := s.get(ctx, role, false, auth.authenticate)
		require.NoError(t, err)
		assert.Equal(t, "ASIACACHED", sess.Credential.AccessKeyID)
		assert.Empty(t, auth.calls)
		assert.Equal(t, 1, validator.Calls)
	})

	t.Run("rejected cached credential is replaced", func(t *testing.T) {
		cache := newTestCache(t)
		require.NoError(t, cache.Put(role, cached))
		auth := &scriptedAuth{}

		s := sessions{cache: cache, validator: mock.NewValidator()}
		sess, err := s.get(ctx, role, false, auth.authenticate)
		require.NoError(t, err)
		assert.Equal(t, "ASIANEW", sess.Credential.AccessKeyID)
		assert.Equal(t, []authCall{{forcePrompt: false}}, auth.calls)

		stored, err := cache.Get(role)
		require.NoError(t, err)
		assert.Equal(t, "ASIANEW", stored.AccessKeyID)
	})

	t.Run("expired cached credential is never validated", func(t *testing.T) {
		cache := newTestCache(t)
		require.NoError(t, cache.Put(role, &sessioncache.Credential{AccessKeyID: "ASIAOLD", Expiration: time.Now().Add(-time.Minute)}))
		validator := mock.NewValidator()
		validator.Valid["ASIAOLD"] = true
		auth := &scriptedAuth{}

		s := sessions{cache: cache, validator: validator}
		sess, err := s.get(ctx, role, false, auth.authenticate)
		require.NoError(t, err)
		assert.Equal(t, "ASIANEW", sess.Credential.AccessKeyID)
		assert.Zero(t, validator.Calls)
		assert.Len(t, auth.calls, 1)
	})

	t.Run("prompt skips the cache and forces the first attempt only", func(t *testing.T) {
		cache := newTestCache(t)
		require.NoError(t, cache.Put(role, cached))
		validator := mock.NewValidator()
		validator.Valid["ASIACACHED"] = true
		auth := &scriptedAuth{errs: []error{ErrInvalidSession}}

		s := sessions{cache: cache, validator: validator}
		sess, err := s.get(ctx, role, true, auth.authenticate)
		require.NoError(t, err)
		assert.Equal(t, "ASIANEW", sess.Credential.AccessKeyID)
		assert.Zero(t, validator.Calls)
		assert.Equal(t, []authCall{{forcePrompt: true}, {forcePrompt: false}}, auth.calls)
	})

	t.Run("recoverable failures stop at the retry ceiling", func(t *testing.T) {
		auth := &scriptedAuth{}
		for i := 0; i < MaxAuthAttempts+1; i++ {
			auth.errs = append(auth.errs, ErrInvalidSession)
		}

		s := sessions{cache: newTestCache(t), validator: mock.NewValidator()}
		_, err := s.get(ctx, role, false, auth.authenticate)

		var fatal *FatalError
		require.True(t, xerrors.As(err, &fatal), "got %v", err)
		assert.Equal(t, MaxAuthAttempts, fatal.Attempts)
		assert.True(t, xerrors.Is(err, ErrRetryCeiling))
		assert.True(t, xerrors.Is(err, ErrInvalidSession))
		assert.True(t, IsTerminal(err))
		assert.Len(t, auth.calls, MaxAuthAttempts)
	})

	t.Run("terminal failure aborts immediately", func(t *testing.T) {
		denied := &AccessDeniedError{Role: role.RoleARN()}
		auth := &scriptedAuth{errs: []error{denied}}

		s := sessions{cache: newTestCache(t), validator: mock.NewValidator()}
		_, err := s.get(ctx, role, false, auth.authenticate)
		assert.Equal(t, denied, err)
		assert.Len(t, auth.calls, 1)
	})

	t.Run("aborted prompt is terminal", func(t *testing.T) {
		auth := &scriptedAuth{errs: []error{prompt.ErrAborted}}

		s := sessions{cache: newTestCache(t), validator: mock.NewValidator()}
		_, err := s.get(ctx, role, false, auth.authenticate)
		assert.True(t, xerrors.Is(err, prompt.ErrAborted))
		assert.Len(t, auth.calls, 1)
	})

	t.Run("cache write failure still returns the session", func(t *testing.T) {
		auth := &scriptedAuth{}
		s := sessions{cache: failingCache{newTestCache(t)}, validator: mock.NewValidator()}
		sess, err := s.get(ctx, role, false, auth.authenticate)
		require.NoError(t, err)
		assert.Equal(t, "ASIANEW", sess.Credential.AccessKeyID)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		auth := &scriptedAuth{}

		s := sessions{cache: newTestCache(t), validator: mock.NewValidator()}
		_, err := s.get(cctx, role, false, auth.authenticate)
		assert.True(t, xerrors.Is(err, context.Canceled))
		assert.Empty(t, auth.calls)
	})
}

func TestIsTerminal(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		terminal bool
	}{
		{"access denied", &AccessDeniedError{Role: "r"}, true},
		{"grammar", &roles.GrammarError{Value: "x"}, true},
		{"no roles", xerrors.Errorf("listing: %w", roles.ErrNoAuthorizedRoles), true},
		{"config", xerrors.Errorf("setup: %w", ErrConfig), true},
		{"exhausted", &retry.ExhaustedError{Attempts: 3}, true},
		{"invalid session", ErrInvalidSession, false},
		{"other", errors.New("connection reset"), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.terminal, IsTerminal(c.err))
		})
	}
}
