package mock

import (
	"sync"

	"github.com/aws/aws-sdk-go/aws"

	"github.com/segmentio/aws-figgy/internal/sessioncache"
)

// Validator accepts the access key ids in Valid.
type Validator struct {
	Valid map[string]bool

	mu    sync.Mutex
	Calls int
}

func NewValidator() *Validator {
	return &Validator{Valid: map[string]bool{}}
}

func (v *Validator) IsValid(ctx aws.Context, cred sessioncache.Credential) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Calls++
	return v.Valid[cred.AccessKeyID]
}
