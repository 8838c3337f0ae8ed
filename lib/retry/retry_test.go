package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func TestDo(t *testing.T) {
	ctx := context.Background()
	p := Policy{MaxAttempts: 5}

	t.Run("stops on success", func(t *testing.T) {
		calls := 0
		err := p.Do(ctx, func(attempt int) error {
			calls++
			if attempt < 3 {
				return errTransient
			}
			return nil
		}, Always)
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up at the ceiling", func(t *testing.T) {
		calls := 0
		err := p.Do(ctx, func(int) error {
			calls++
			return errTransient
		}, Always)
		assert.Equal(t, 5, calls)

		var exhausted *ExhaustedError
		if assert.True(t, xerrors.As(err, &exhausted)) {
			assert.Equal(t, 5, exhausted.Attempts)
		}
		assert.True(t, xerrors.Is(err, errTransient))
	})

	t.Run("terminal errors are not retried", func(t *testing.T) {
		calls := 0
		err := p.Do(ctx, func(int) error {
			calls++
			return errFatal
		}, func(err error) bool { return err != errFatal })
		assert.Equal(t, errFatal, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("zero policy runs once", func(t *testing.T) {
		calls := 0
		err := Policy{}.Do(ctx, func(int) error {
			calls++
			return errTransient
		}, Always)
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		calls := 0
		err := p.Do(cctx, func(int) error {
			calls++
			return nil
		}, Always)
		assert.True(t, xerrors.Is(err, context.Canceled))
		assert.Equal(t, 0, calls)
	})
}

func TestDelay(t *testing.T) {
	p := Policy{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}
	assert.Equal(t, 100*time.Millisecond, p.Delay(1))
	assert.Equal(t, 200*time.Millisecond, p.Delay(2))
	assert.Equal(t, 400*time.Millisecond, p.Delay(3))
	assert.Equal(t, time.Second, p.Delay(10))

	constant := Policy{InitialDelay: 50 * time.Millisecond}
	assert.Equal(t, 50*time.Millisecond, constant.Delay(4))
}
