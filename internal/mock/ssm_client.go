package mock

import (
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
)

// SSMClient implements ssmiface.SSMAPI over an in-memory parameter map.
type SSMClient struct {
	ssmiface.SSMAPI

	Parameters map[string]string
	// PageSize splits GetParametersByPath results into pages.
	PageSize int
}

func NewSSMClient(params map[string]string) *SSMClient {
	return &SSMClient{Parameters: params, PageSize: 1}
}

func (mock *SSMClient) GetParameterWithContext(ctx aws.Context, input *ssm.GetParameterInput, opts ...request.Option) (*ssm.GetParameterOutput, error) {
	name := aws.StringValue(input.Name)
	value, ok := mock.Parameters[name]
	if !ok {
		return nil, awserr.New(ssm.ErrCodeParameterNotFound, "parameter "+name+" not found", nil)
	}
	return &ssm.GetParameterOutput{Parameter: &ssm.Parameter{
		Name:  aws.String(name),
		Value: aws.String(value),
	}}, nil
}

// GetParametersByPathPagesWithContext returns the direct children of the
// path; Recursive is ignored.
func (mock *SSMClient) GetParametersByPathPagesWithContext(ctx aws.Context, input *ssm.GetParametersByPathInput, fn func(*ssm.GetParametersByPathOutput, bool) bool, opts ...request.Option) error {
	prefix := strings.TrimSuffix(aws.StringValue(input.Path), "/") + "/"

	var params []*ssm.Parameter
	for name, value := range mock.Parameters {
		rest := strings.TrimPrefix(name, prefix)
		if rest == name || strings.Contains(rest, "/") {
			continue
		}
		params = append(params, &ssm.Parameter{Name: aws.String(name), Value: aws.String(value)})
	}

	size := mock.PageSize
	if size < 1 {
		size = len(params)
	}
	for start := 0; start < len(params) || start == 0; start += size {
		end := start + size
		if end > len(params) {
			end = len(params)
		}
		last := end >= len(params)
		if !fn(&ssm.GetParametersByPathOutput{Parameters: params[start:end]}, last) || last {
			break
		}
	}
	return nil
}
