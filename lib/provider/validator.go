package provider

import (
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	aws_session "github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	log "github.com/sirupsen/logrus"

	"github.com/segmentio/aws-figgy/internal/sessioncache"
	"github.com/segmentio/aws-figgy/lib/retry"
)

// DefaultValidatorPolicy re-checks a credential a couple of times when the
// check itself fails in transit.
var DefaultValidatorPolicy = retry.Policy{
	MaxAttempts:  3,
	InitialDelay: 100 * time.Millisecond,
	MaxDelay:     time.Second,
	Multiplier:   2,
}

// Validator checks credentials with sts:GetCallerIdentity.
type Validator struct {
	// NewClient builds an STS client acting as cred.
	NewClient func(cred sessioncache.Credential) (stsiface.STSAPI, error)
	Policy    retry.Policy
}

func NewValidator(region string) *Validator {
	return &Validator{
		NewClient: func(cred sessioncache.Credential) (stsiface.STSAPI, error) {
			awsSession, err := aws_session.NewSession(awsConfig(cred, region))
			if err != nil {
				return nil, err
			}
			return sts.New(awsSession), nil
		},
		Policy: DefaultValidatorPolicy,
	}
}

// IsValid never returns an error; any failure means the credential is not
// usable.
func (v *Validator) IsValid(ctx aws.Context, cred sessioncache.Credential) bool {
	client, err := v.NewClient(cred)
	if err != nil {
		log.Debugf("validating session %s: building client: %s", cred.ShortID(), err)
		return false
	}

	err = v.Policy.Do(ctx, func(attempt int) error {
		identity, err := client.GetCallerIdentityWithContext(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			log.Debugf("validating session %s (attempt %d): %s", cred.ShortID(), attempt, err)
			return err
		}
		log.Debugf("session %s is valid for %s", cred.ShortID(), aws.StringValue(identity.Arn))
		return nil
	}, isTransportError)
	return err == nil
}

// isTransportError reports whether err says nothing about the credential
// itself. Explicit rejections like ExpiredToken or InvalidClientTokenId are
// not retried.
func isTransportError(err error) bool {
	switch awsErrorCode(err) {
	case request.ErrCodeRequestError,
		request.ErrCodeResponseTimeout,
		request.ErrCodeSerialization,
		request.ErrCodeRead,
		"Throttling",
		"ThrottlingException",
		"InternalFailure",
		"ServiceUnavailable":
		return true
	}
	return false
}
