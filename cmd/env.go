package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/spf13/cobra"

	"github.com/segmentio/aws-figgy/cmd/internal/analytics"
)

// envCmd represents the env command
var envCmd = &cobra.Command{
	Use:     "env [env] [role]",
	Short:   "env prints out export commands for a role session",
	RunE:    envRun,
	Example: "eval $(figgy env dev data)",
}

func init() {
	RootCmd.AddCommand(envCmd)
}

const AnalyticsCommandNameEnv = "env"

func printExport(w io.Writer, shell, varName, varValue string) {
	exportString := "export %s=%s\n"
	if strings.Contains(shell, "fish") {
		exportString = "set -x %s %s\n"
	}
	fmt.Fprintf(w, exportString, varName, shellescape.Quote(varValue))
}

func envRun(cmd *cobra.Command, args []string) error {
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
	sess, err := b.Session(ctx, envName, roleName, false)
	if err != nil {
		return err
	}
	Analytics.TrackRanCommand(AnalyticsCommandNameEnv,
		[2]string{analytics.PropertyEnv, sess.Role.RunEnv.Env},
		[2]string{analytics.PropertyRole, sess.Role.Role.Name})

	env := kvEnv{}
	env.AddSession(sess)
	shell := os.Getenv("SHELL")
	for _, k := range env.Keys() {
		printExport(os.Stdout, shell, k, env[k])
	}
	return nil
}
