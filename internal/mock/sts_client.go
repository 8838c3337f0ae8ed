// Package mock holds hand written fakes of the AWS clients and operator
// facing collaborators used across package tests.
package mock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
)

// Credentials returns STS credentials named after id.
func Credentials(id string, expiration time.Time) *sts.Credentials {
	return &sts.Credentials{
		AccessKeyId:     aws.String("ASIA" + id),
		SecretAccessKey: aws.String("secret-" + id),
		SessionToken:    aws.String("token-" + id),
		Expiration:      aws.Time(expiration),
	}
}

// STSClient implements stsiface.STSAPI for the calls the broker makes.
type STSClient struct {
	stsiface.STSAPI

	// AssumableRoles maps role arn to the credentials handed out for it,
	// both for AssumeRole and AssumeRoleWithSAML.
	AssumableRoles map[string]*sts.Credentials
	// Errors are returned, in order, by the next assume role calls.
	Errors []error
	// IdentityErrors are returned, in order, by the next
	// GetCallerIdentity calls.
	IdentityErrors []error

	mu               sync.Mutex
	AssumeRoleInputs []*sts.AssumeRoleInput
	SAMLInputs       []*sts.AssumeRoleWithSAMLInput
	IdentityCalls    int
}

// NewSTSClient returns a mock STSClient.
func NewSTSClient() *STSClient {
	return &STSClient{
		AssumableRoles: make(map[string]*sts.Credentials),
	}
}

func (mock *STSClient) popError() error {
	if len(mock.Errors) == 0 {
		return nil
	}
	err := mock.Errors[0]
	mock.Errors = mock.Errors[1:]
	return err
}

func (mock *STSClient) credentialsFor(arn *string) (*sts.Credentials, error) {
	if arn == nil {
		return nil, errors.New("No RoleArn given")
	}
	credential, hasKey := mock.AssumableRoles[*arn]
	if !hasKey {
		return nil, fmt.Errorf("Cannot assume role: %s", *arn)
	}
	return credential, nil
}

func (mock *STSClient) AssumeRoleWithContext(ctx aws.Context, input *sts.AssumeRoleInput, opts ...request.Option) (*sts.AssumeRoleOutput, error) {
	mock.mu.Lock()
	defer mock.mu.Unlock()

	mock.AssumeRoleInputs = append(mock.AssumeRoleInputs, input)
	if err := mock.popError(); err != nil {
		return nil, err
	}
	credential, err := mock.credentialsFor(input.RoleArn)
	if err != nil {
		return nil, err
	}
	return &sts.AssumeRoleOutput{Credentials: credential}, nil
}

func (mock *STSClient) AssumeRoleWithSAMLWithContext(ctx aws.Context, input *sts.AssumeRoleWithSAMLInput, opts ...request.Option) (*sts.AssumeRoleWithSAMLOutput, error) {
	mock.mu.Lock()
	defer mock.mu.Unlock()

	mock.SAMLInputs = append(mock.SAMLInputs, input)
	if err := mock.popError(); err != nil {
		return nil, err
	}
	credential, err := mock.credentialsFor(input.RoleArn)
	if err != nil {
		return nil, err
	}
	return &sts.AssumeRoleWithSAMLOutput{Credentials: credential}, nil
}

func (mock *STSClient) GetCallerIdentityWithContext(ctx aws.Context, input *sts.GetCallerIdentityInput, opts ...request.Option) (*sts.GetCallerIdentityOutput, error) {
	mock.mu.Lock()
	defer mock.mu.Unlock()

	mock.IdentityCalls++
	if len(mock.IdentityErrors) > 0 {
		err := mock.IdentityErrors[0]
		mock.IdentityErrors = mock.IdentityErrors[1:]
		if err != nil {
			return nil, err
		}
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:sts::123456789012:assumed-role/figgy-dev-data/jane"),
		UserId:  aws.String("AROA:jane"),
	}, nil
}
