package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// rolesCmd represents the roles command
var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "roles lists the env/role pairs you may assume",
	RunE:  rolesRun,
}

func init() {
	RootCmd.AddCommand(rolesCmd)
}

const AnalyticsCommandNameRoles = "roles"

func rolesRun(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &ErrBadArgCount{Actual: len(args), Expected: 0}
	}

	ctx, cancel := signalContext()
	defer cancel()

	_, b, err := loadBroker(ctx)
	if err != nil {
		return err
	}
	catalog, err := b.AssumableRoles(ctx)
	if err != nil {
		return err
	}
	Analytics.TrackRanCommand(AnalyticsCommandNameRoles)

	w := tabwriter.NewWriter(os.Stdout, 25, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENV\tROLE\tARN")
	for _, r := range catalog {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.RunEnv.Env, r.Role.Name, r.RoleARN())
	}
	return w.Flush()
}
