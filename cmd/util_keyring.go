package cmd

import (
	"context"

	"github.com/99designs/keyring"

	"github.com/segmentio/aws-figgy/lib/config"
	"github.com/segmentio/aws-figgy/lib/keyrings"
	"github.com/segmentio/aws-figgy/lib/prompt"
)

func openKeyring(ctx context.Context, cfg *config.Config, terminal *prompt.Terminal) (keyring.Keyring, error) {
	return keyrings.Open(keyrings.Options{
		BackendType: FlagKeyringBackend,
		FileDir:     cfg.KeyringDir,
		FilePasswordFunc: func(label string) (string, error) {
			return terminal.Secret(ctx, label)
		},
	})
}
