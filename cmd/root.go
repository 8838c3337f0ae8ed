package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/segmentio/aws-figgy/cmd/internal/analytics"
	"github.com/segmentio/aws-figgy/lib/broker"
	"github.com/segmentio/aws-figgy/lib/config"
	"github.com/segmentio/aws-figgy/lib/keyrings"
	"github.com/segmentio/aws-figgy/lib/prompt"
)

// BackendEnv selects the keyring backend when --backend is not given.
const BackendEnv = "FIGGY_BACKEND"

var (
	FlagKeyringBackend string
	FlagDebug          bool
	FlagConfigFile     string
)

var (
	Analytics analytics.Client
	Version   string
)

var RootCmd = &cobra.Command{
	Use:               "figgy",
	Short:             "figgy hands out short-lived AWS credentials for your figgy roles",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: prerun,
	PersistentPostRun: postrun,
}

type ErrBadArgCount struct {
	Actual   int
	Expected int
}

func (e *ErrBadArgCount) Error() string {
	return fmt.Sprintf("wrong number of arguments; expected at most %d, got %d", e.Expected, e.Actual)
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(version string, writeKey string) {
	Version = version
	if writeKey != "" {
		Analytics = analytics.New(writeKey)
		Analytics.UserId = os.Getenv("USER")
		Analytics.Version = Version
	}
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		var argErr *ErrBadArgCount
		if errors.As(err, &argErr) {
			RootCmd.Usage()
		}
		os.Exit(1)
	}
}

func prerun(cmd *cobra.Command, args []string) error {
	if FlagDebug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	// Load backend from env var if not set as a flag
	if !cmd.Flags().Lookup("backend").Changed {
		if backendFromEnv, ok := os.LookupEnv(BackendEnv); ok {
			FlagKeyringBackend = backendFromEnv
		}
	}
	if !cmd.Flags().Lookup("config").Changed {
		file, err := config.FileFromEnv()
		if err != nil {
			return err
		}
		FlagConfigFile = file
	}

	Analytics.KeyringBackend = FlagKeyringBackend
	Analytics.Identify()
	return nil
}

func postrun(cmd *cobra.Command, args []string) {
	Analytics.Close()
}

// signalContext is cancelled on SIGINT or SIGTERM. Prompts waiting for input
// are aborted when it is.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadBroker reads the configuration and builds a broker that prompts on
// the terminal. ctx bounds the keyring password prompt.
func loadBroker(ctx context.Context) (*config.Config, *broker.Broker, error) {
	cfg, err := config.Load(FlagConfigFile)
	if err != nil {
		return nil, nil, err
	}
	Analytics.Provider = cfg.Provider

	terminal := prompt.NewTerminal()
	deps := broker.Deps{
		Prompter: terminal,
		MFA:      terminal,
	}
	if cfg.Provider == config.ProviderOkta {
		kr, err := openKeyring(ctx, cfg, terminal)
		if err != nil {
			return nil, nil, err
		}
		deps.Secrets = &keyrings.Secrets{Keyring: kr}
	}

	b, err := broker.New(cfg, deps)
	if err != nil {
		return nil, nil, err
	}
	return cfg, b, nil
}

// selection reads the optional <env> [role] arguments.
func selection(args []string) (env, role string, err error) {
	switch len(args) {
	case 2:
		role = args[1]
		fallthrough
	case 1:
		env = args[0]
	case 0:
	default:
		return "", "", &ErrBadArgCount{Actual: len(args), Expected: 2}
	}
	return env, role, nil
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&FlagKeyringBackend, "backend", "b", "", fmt.Sprintf("Secret backend to use %s", keyrings.AvailableBackends()))
	RootCmd.PersistentFlags().BoolVarP(&FlagDebug, "debug", "d", false, "Enable debug logging")
	RootCmd.PersistentFlags().StringVarP(&FlagConfigFile, "config", "c", "", fmt.Sprintf("figgy configuration file (default $%s or ~/.figgy/config)", config.FileEnv))
}
