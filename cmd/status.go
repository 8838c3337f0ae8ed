package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "status shows the provider and the cached sessions",
	RunE:  statusRun,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func statusRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, b, err := loadBroker(ctx)
	if err != nil {
		return err
	}
	keys, err := b.Cache().Keys()
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "provider: %s\ncache: %s\n", b.ProviderName(), cfg.CacheFile)
	for _, k := range keys {
		fmt.Fprintf(os.Stdout, "  %s\n", k)
	}
	return nil
}
