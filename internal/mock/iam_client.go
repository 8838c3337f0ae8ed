package mock

import (
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
)

// IAMClient implements iamiface.IAMAPI for the calls the broker makes.
type IAMClient struct {
	iamiface.IAMAPI

	// UserName is returned by GetUser; empty fails the call.
	UserName string
	// MFADevices maps user name to MFA serial numbers.
	MFADevices map[string][]string

	mu              sync.Mutex
	ListDeviceCalls int
}

func NewIAMClient() *IAMClient {
	return &IAMClient{MFADevices: map[string][]string{}}
}

func (mock *IAMClient) GetUserWithContext(ctx aws.Context, input *iam.GetUserInput, opts ...request.Option) (*iam.GetUserOutput, error) {
	if mock.UserName == "" {
		return nil, awserr.New("AccessDenied", "not authorized to perform iam:GetUser", nil)
	}
	return &iam.GetUserOutput{User: &iam.User{UserName: aws.String(mock.UserName)}}, nil
}

func (mock *IAMClient) ListMFADevicesWithContext(ctx aws.Context, input *iam.ListMFADevicesInput, opts ...request.Option) (*iam.ListMFADevicesOutput, error) {
	mock.mu.Lock()
	defer mock.mu.Unlock()
	mock.ListDeviceCalls++

	out := &iam.ListMFADevicesOutput{}
	for _, serial := range mock.MFADevices[aws.StringValue(input.UserName)] {
		out.MFADevices = append(out.MFADevices, &iam.MFADevice{
			SerialNumber: aws.String(serial),
			UserName:     input.UserName,
		})
	}
	return out, nil
}
