package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/segmentio/aws-figgy/cmd/internal/analytics"
)

var flagPrompt bool

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login [env] [role]",
	Short: "login fetches a session for a role, reusing a cached one while AWS accepts it",
	RunE:  loginRun,
}

func init() {
	RootCmd.AddCommand(loginCmd)
	loginCmd.Flags().BoolVarP(&flagPrompt, "prompt", "p", false, "Ignore cached sessions and authenticate again")
}

const AnalyticsCommandNameLogin = "login"

func loginRun(cmd *cobra.Command, args []string) error {
	envName, roleName, err := selection(args)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	_, b, err := loadBroker(ctx)
	if err != nil {
		return err
	}
	sess, err := b.Session(ctx, envName, roleName, flagPrompt)
	if err != nil {
		return err
	}
	Analytics.TrackRanCommand(AnalyticsCommandNameLogin,
		[2]string{analytics.PropertyEnv, sess.Role.RunEnv.Env},
		[2]string{analytics.PropertyRole, sess.Role.Role.Name})

	fmt.Fprintf(os.Stderr, "%s session valid until %s\n", sess.Role, sess.Credential.Expiration.Local().Format(time.Kitchen))
	return nil
}
