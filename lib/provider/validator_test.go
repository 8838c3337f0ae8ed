package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
	"github.com/stretchr/testify/assert"

	"github.com/segmentio/aws-figgy/internal/mock"
	"github.com/segmentio/aws-figgy/internal/sessioncache"
	"github.com/segmentio/aws-figgy/lib/retry"
)

func testValidator(client *mock.STSClient) *Validator {
	return &Validator{
		NewClient: func(sessioncache.Credential) (stsiface.STSAPI, error) {
			return client, nil
		},
		Policy: retry.Policy{MaxAttempts: 3},
	}
}

func TestValidatorIsValid(t *testing.T) {
	ctx := context.Background()
	cred := sessioncache.Credential{AccessKeyID: "ASIAVALID", Expiration: theDistantFuture}

	t.Run("accepted", func(t *testing.T) {
		client := mock.NewSTSClient()
		assert.True(t, testValidator(client).IsValid(ctx, cred))
		assert.Equal(t, 1, client.IdentityCalls)
	})

	t.Run("rejection is not retried", func(t *testing.T) {
		client := mock.NewSTSClient()
		client.IdentityErrors = []error{awserr.New("ExpiredToken", "token expired", nil)}
		assert.False(t, testValidator(client).IsValid(ctx, cred))
		assert.Equal(t, 1, client.IdentityCalls)
	})

	t.Run("transport errors are retried", func(t *testing.T) {
		client := mock.NewSTSClient()
		client.IdentityErrors = []error{
			awserr.New(request.ErrCodeRequestError, "send request failed", nil),
			awserr.New(request.ErrCodeResponseTimeout, "timeout", nil),
		}
		assert.True(t, testValidator(client).IsValid(ctx, cred))
		assert.Equal(t, 3, client.IdentityCalls)
	})

	t.Run("persistent transport errors are invalid", func(t *testing.T) {
		client := mock.NewSTSClient()
		for i := 0; i < 3; i++ {
			client.IdentityErrors = append(client.IdentityErrors, awserr.New(request.ErrCodeRequestError, "offline", nil))
		}
		assert.False(t, testValidator(client).IsValid(ctx, cred))
		assert.Equal(t, 3, client.IdentityCalls)
	})

	t.Run("client construction failure is invalid", func(t *testing.T) {
		v := &Validator{NewClient: func(sessioncache.Credential) (stsiface.STSAPI, error) {
			return nil, errors.New("no region")
		}}
		assert.False(t, v.IsValid(ctx, cred))
	})
}
