package mock

import (
	"context"
	"errors"
	"sync"
)

var errNoAnswer = errors.New("mock prompter has no answer left")

// Prompter answers prompts from fixed lists and counts the prompts. The
// last answer of each list repeats.
type Prompter struct {
	User      string
	Passwords []string
	MFACodes  []string
	// MFAErr, when set, is returned by every MFA prompt.
	MFAErr error

	mu            sync.Mutex
	UserCalls     int
	PasswordCalls int
	MFACalls      int
}

func (p *Prompter) Username(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.UserCalls++
	if p.User == "" {
		return "", errNoAnswer
	}
	return p.User, nil
}

func (p *Prompter) Password(ctx context.Context, user string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PasswordCalls++
	return pop(&p.Passwords)
}

func (p *Prompter) MFACode(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.MFACalls++
	if p.MFAErr != nil {
		return "", p.MFAErr
	}
	return pop(&p.MFACodes)
}

func pop(answers *[]string) (string, error) {
	if len(*answers) == 0 {
		return "", errNoAnswer
	}
	answer := (*answers)[0]
	if len(*answers) > 1 {
		*answers = (*answers)[1:]
	}
	return answer, nil
}
