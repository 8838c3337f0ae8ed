package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/segmentio/aws-figgy/cmd/internal/analytics"
)

var flagWarmRole string

// warmCmd represents the warm command
var warmCmd = &cobra.Command{
	Use:     "warm [env...]",
	Short:   "warm fetches sessions for a role in every env in parallel",
	RunE:    warmRun,
	Example: "figgy warm --role data dev prod",
}

func init() {
	RootCmd.AddCommand(warmCmd)
	warmCmd.Flags().StringVarP(&flagWarmRole, "role", "r", "", "Role to warm (default: role from config)")
}

const AnalyticsCommandNameWarm = "warm"

func warmRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	_, b, err := loadBroker(ctx)
	if err != nil {
		return err
	}
	results, err := b.Prewarm(ctx, flagWarmRole, args)
	if err != nil {
		return err
	}
	Analytics.TrackRanCommand(AnalyticsCommandNameWarm, [2]string{analytics.PropertyRole, flagWarmRole})

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %s\n", r.Env, r.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "%s: ok, expires %s\n", r.Env, r.Session.Credential.Expiration.Local().Format("15:04"))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d envs failed to warm", failed, len(results))
	}
	return nil
}
