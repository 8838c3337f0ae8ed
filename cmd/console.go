package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/segmentio/aws-figgy/cmd/internal/analytics"
	"github.com/segmentio/aws-figgy/lib/provider"
)

const federationURL = "https://signin.aws.amazon.com/federation"

var flagConsolePrint bool

// consoleCmd represents the console command
var consoleCmd = &cobra.Command{
	Use:   "console [env] [role]",
	Short: "console opens the AWS console in a browser as a role",
	RunE:  consoleRun,
}

func init() {
	RootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().BoolVar(&flagConsolePrint, "print", false, "Print the sign-in URL instead of opening it")
}

const AnalyticsCommandNameConsole = "console"

func consoleRun(cmd *cobra.Command, args []string) error {
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
	Analytics.TrackRanCommand(AnalyticsCommandNameConsole,
		[2]string{analytics.PropertyEnv, sess.Role.RunEnv.Env},
		[2]string{analytics.PropertyRole, sess.Role.Role.Name})

	loginURL, err := consoleURL(ctx, http.DefaultClient, sess)
	if err != nil {
		return err
	}
	if flagConsolePrint {
		fmt.Println(loginURL)
		return nil
	}
	return open.Run(loginURL)
}

// consoleURL exchanges a session for a console sign-in URL with the AWS
// federation endpoint.
func consoleURL(ctx context.Context, client *http.Client, sess *provider.Session) (string, error) {
	jsonBytes, err := json.Marshal(map[string]string{
		"sessionId":    sess.Credential.AccessKeyID,
		"sessionKey":   sess.Credential.SecretAccessKey,
		"sessionToken": sess.Credential.SessionToken,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", federationURL, nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Add("Action", "getSigninToken")
	q.Add("Session", string(jsonBytes))
	req.URL.RawQuery = q.Encode()

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("call to getSigninToken failed with %v", resp.Status)
	}

	var respParsed map[string]string
	if err = json.Unmarshal(body, &respParsed); err != nil {
		return "", xerrors.Errorf("parsing getSigninToken response: %w", err)
	}
	signinToken, ok := respParsed["SigninToken"]
	if !ok || signinToken == "" {
		return "", fmt.Errorf("getSigninToken response has no SigninToken")
	}

	destination := "https://console.aws.amazon.com/"
	if sess.Region != "" {
		destination = fmt.Sprintf(
			"https://%s.console.aws.amazon.com/console/home?region=%s",
			sess.Region, sess.Region,
		)
	}

	return fmt.Sprintf(
		"%s?Action=login&Issuer=figgy&Destination=%s&SigninToken=%s",
		federationURL,
		url.QueryEscape(destination),
		url.QueryEscape(signinToken),
	), nil
}
