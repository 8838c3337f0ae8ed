// Package prompt asks the operator for usernames, passwords and MFA codes.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/segmentio/aws-figgy/lib/oktaclient"
)

// ErrAborted is returned when input ends before an answer is given, or the
// prompt's context is cancelled while waiting for one.
var ErrAborted = errors.New("prompt aborted")

// Terminal prompts on an input stream, reading secrets without echo when
// the input is a terminal. Prompts are serialized so concurrent callers
// never interleave. Once a prompt is interrupted every later prompt is
// aborted too.
type Terminal struct {
	In  *os.File
	Out io.Writer

	mu      sync.Mutex
	reader  *bufio.Reader
	aborted bool
}

func NewTerminal() *Terminal {
	return &Terminal{In: os.Stdin, Out: os.Stderr}
}

type answer struct {
	value string
	err   error
}

func (t *Terminal) ask(ctx context.Context, label string, sensitive bool) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.aborted {
		return "", ErrAborted
	}
	if err := ctx.Err(); err != nil {
		t.aborted = true
		return "", ErrAborted
	}

	fmt.Fprintf(t.Out, "%s: ", label)

	fd := int(t.In.Fd())
	read := t.readLine
	var state *term.State
	if sensitive && term.IsTerminal(fd) {
		var err error
		if state, err = term.GetState(fd); err != nil {
			return "", err
		}
		read = func() (string, error) {
			input, err := term.ReadPassword(fd)
			return string(input), err
		}
	}

	answers := make(chan answer, 1)
	go func() {
		value, err := read()
		answers <- answer{value, err}
	}()

	select {
	case a := <-answers:
		if state != nil {
			fmt.Fprintf(t.Out, "\n")
		}
		if a.err != nil {
			return "", a.err
		}
		return nonEmpty(a.value)
	case <-ctx.Done():
		// the pending read owns the input from here on
		t.aborted = true
		if state != nil {
			_ = term.Restore(fd, state)
		}
		fmt.Fprintf(t.Out, "\n")
		return "", ErrAborted
	}
}

func (t *Terminal) readLine() (string, error) {
	if t.reader == nil {
		t.reader = bufio.NewReader(t.In)
	}
	value, err := t.reader.ReadString('\n')
	if err == io.EOF && value != "" {
		err = nil
	}
	if err == io.EOF {
		return "", ErrAborted
	}
	return value, err
}

func nonEmpty(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrAborted
	}
	return value, nil
}

func (t *Terminal) Username(ctx context.Context) (string, error) {
	return t.ask(ctx, "Username", false)
}

func (t *Terminal) Password(ctx context.Context, user string) (string, error) {
	return t.ask(ctx, fmt.Sprintf("Password for %s", user), true)
}

func (t *Terminal) MFACode(ctx context.Context) (string, error) {
	return t.ask(ctx, "MFA code", true)
}

// CodeSupplier asks for the one time code of an Okta token factor.
func (t *Terminal) CodeSupplier(ctx context.Context, factor oktaclient.Factor) (string, error) {
	return t.ask(ctx, fmt.Sprintf("Enter %s code", factor.Provider), true)
}

// Secret prompts for any sensitive value, e.g. a file keyring password.
func (t *Terminal) Secret(ctx context.Context, label string) (string, error) {
	return t.ask(ctx, label, true)
}
