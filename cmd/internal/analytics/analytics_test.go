package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZeroClientIsNoop(t *testing.T) {
	var c Client
	assert.False(t, c.Enabled())
	assert.NotPanics(t, func() {
		c.Identify()
		c.TrackRanCommand("login", [2]string{PropertyEnv, "dev"})
		c.Close()
	})
}
