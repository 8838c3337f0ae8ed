package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/segmentio/aws-figgy/cmd/internal/analytics"
)

// execCmd represents the exec command
var execCmd = &cobra.Command{
	Use:   "exec [env] [role] -- <command>",
	Short: "exec will run the command specified with aws credentials set in the environment",
	RunE:  execRun,
}

func init() {
	RootCmd.AddCommand(execCmd)
}

const AnalyticsCommandNameExec = "exec"

func execRun(cmd *cobra.Command, args []string) error {
	dashIx := cmd.ArgsLenAtDash()
	if dashIx == -1 || dashIx == len(args) {
		return fmt.Errorf("missing command")
	}

	args, commandPart := args[:dashIx], args[dashIx:]
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
	// the child gets the signals from here on
	cancel()

	Analytics.TrackRanCommand(AnalyticsCommandNameExec,
		[2]string{analytics.PropertyEnv, sess.Role.RunEnv.Env},
		[2]string{analytics.PropertyRole, sess.Role.Role.Name})

	env := kvEnv{}
	env.LoadFromEnviron(os.Environ()...)
	env.AddSession(sess)

	ecmd := exec.Command(commandPart[0], commandPart[1:]...)
	ecmd.Stdin = os.Stdin
	ecmd.Stdout = os.Stdout
	ecmd.Stderr = os.Stderr
	ecmd.Env = env.Environ()

	// Forward SIGINT, SIGTERM to the child command
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(sigChan)

	go func() {
		sig, ok := <-sigChan
		if ok && ecmd.Process != nil {
			ecmd.Process.Signal(sig)
		}
	}()

	if err := ecmd.Run(); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			waitStatus := exitError.Sys().(syscall.WaitStatus)
			os.Exit(waitStatus.ExitStatus())
		}
		return err
	}
	return nil
}
