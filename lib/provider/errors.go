package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"golang.org/x/xerrors"

	"github.com/segmentio/aws-figgy/lib/config"
	"github.com/segmentio/aws-figgy/lib/prompt"
	"github.com/segmentio/aws-figgy/lib/retry"
	"github.com/segmentio/aws-figgy/lib/roles"
)

var (
	// ErrInvalidSession is a transient identity provider failure, such as an
	// expired identity session or a truncated assertion.
	ErrInvalidSession = errors.New("invalid identity provider session")

	// ErrConfig is a setup problem re-authenticating cannot fix.
	ErrConfig = errors.New("invalid figgy configuration")

	// ErrRetryCeiling means every authentication attempt failed.
	ErrRetryCeiling = errors.New("authentication retry ceiling reached")
)

// AccessDeniedError is AWS or the identity provider explicitly refusing the
// operator the role.
type AccessDeniedError struct {
	Role    string
	Profile string
	Err     error
}

func (e *AccessDeniedError) Error() string {
	msg := fmt.Sprintf("access denied to role %s", e.Role)
	if e.Profile != "" {
		msg += fmt.Sprintf(" from profile %s", e.Profile)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AccessDeniedError) Unwrap() error {
	return e.Err
}

// FatalError ends a session request after the retry ceiling.
type FatalError struct {
	Role     string
	Attempts int
	Last     error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("failed to authenticate for role %s after %d attempts: %s", e.Role, e.Attempts, e.Last)
}

func (e *FatalError) Is(target error) bool {
	return target == ErrRetryCeiling
}

func (e *FatalError) Unwrap() error {
	return e.Last
}

// IsTerminal reports whether err must abort the session request instead of
// triggering another authentication attempt.
func IsTerminal(err error) bool {
	var accessDenied *AccessDeniedError
	var grammar *roles.GrammarError
	var selection *roles.SelectionError
	var fatal *FatalError
	var exhausted *retry.ExhaustedError

	switch {
	case xerrors.As(err, &accessDenied),
		xerrors.As(err, &grammar),
		xerrors.As(err, &selection),
		xerrors.As(err, &fatal),
		xerrors.As(err, &exhausted),
		xerrors.Is(err, roles.ErrNoAuthorizedRoles),
		xerrors.Is(err, ErrConfig),
		xerrors.Is(err, config.ErrInvalid),
		xerrors.Is(err, prompt.ErrAborted),
		xerrors.Is(err, context.Canceled),
		xerrors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

func isRecoverable(err error) bool {
	return !IsTerminal(err)
}

func awsErrorCode(err error) string {
	var aerr awserr.Error
	if xerrors.As(err, &aerr) {
		return aerr.Code()
	}
	return ""
}
