package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "logout forgets cached sessions and the identity provider session",
	RunE:  logoutRun,
}

func init() {
	RootCmd.AddCommand(logoutCmd)
}

const AnalyticsCommandNameLogout = "logout"

func logoutRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	_, b, err := loadBroker(ctx)
	if err != nil {
		return err
	}
	if err := b.Logout(ctx); err != nil {
		return err
	}
	Analytics.TrackRanCommand(AnalyticsCommandNameLogout)
	fmt.Fprintln(os.Stderr, "logged out")
	return nil
}
