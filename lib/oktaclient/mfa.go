package oktaclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// MFAInputs supplies one time codes for token factors.
type MFAInputs interface {
	CodeSupplier(ctx context.Context, factor Factor) (string, error)
}

func isTOTP(f Factor) bool {
	return f.FactorType == FactorTypeTOTP || f.FactorType == FactorTypeHardwareOTP
}

func isSMS(f Factor) bool {
	return f.FactorType == FactorTypeSMS
}

func isPush(f Factor) bool {
	return f.FactorType == FactorTypePush && strings.EqualFold(f.Provider, "OKTA")
}

// selectFactor picks the configured factor type, or the first supported
// one, TOTP factors before the others.
func (o *Client) selectFactor() (Factor, error) {
	var supported []Factor
	for _, f := range o.userAuth.Embedded.Factors {
		if isTOTP(f) || isSMS(f) || isPush(f) {
			supported = append(supported, f)
		}
	}
	if len(supported) == 0 {
		return Factor{}, fmt.Errorf("no supported MFA devices registered but MFA requested by Okta. %w", ErrInvalidCredentials)
	}

	if want := o.creds.FactorType; want != "" {
		for _, f := range supported {
			if strings.EqualFold(f.FactorType, want) {
				log.Debugf("Using matching factor \"%v %v\" from config", f.Provider, f.FactorType)
				return f, nil
			}
		}
		return Factor{}, fmt.Errorf("MFA factor %s is not enrolled in Okta. %w", want, ErrInvalidCredentials)
	}

	for _, f := range supported {
		if isTOTP(f) {
			return f, nil
		}
	}
	return supported[0], nil
}

func (o *Client) challengeMFA(ctx context.Context) error {
	factor, err := o.selectFactor()
	if err != nil {
		return err
	}
	log.Debugf("challenging MFA factor %s (%s)", factor.ID, factor.FactorType)

	payload := stateToken{StateToken: o.userAuth.StateToken}
	switch {
	case isTOTP(factor):
		code, err := o.inputs.CodeSupplier(ctx, factor)
		if err != nil {
			return err
		}
		payload.PassCode = code
	case isSMS(factor):
		code, err := o.challengeSMS(ctx, factor, payload)
		if err != nil {
			return err
		}
		payload.PassCode = code
	default:
		log.Info("Sending Okta Verify push notification...")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	for {
		if err := o.verifyFactor(ctx, factor, body); err != nil {
			return err
		}

		switch o.userAuth.Status {
		case StatusSuccess:
			return nil
		case StatusMFAChallenge:
		default:
			return fmt.Errorf("unexpected authn status %s after MFA. %w", o.userAuth.Status, ErrUnexpectedResponse)
		}

		switch o.userAuth.FactorResult {
		case FactorResultWaiting:
		case FactorResultRejected:
			return fmt.Errorf("MFA push was rejected. %w", ErrInvalidCredentials)
		case FactorResultTimeout:
			return fmt.Errorf("MFA push timed out. %w", ErrInvalidSession)
		default:
			return fmt.Errorf("unexpected MFA result %q. %w", o.userAuth.FactorResult, ErrUnexpectedResponse)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.pollInterval):
		}
	}
}

// challengeSMS has Okta text a code to the operator and asks for it. A
// verify without a passcode sends the message.
func (o *Client) challengeSMS(ctx context.Context, factor Factor, payload stateToken) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if err := o.verifyFactor(ctx, factor, body); err != nil {
		return "", err
	}
	if o.userAuth.Status != StatusMFAChallenge {
		return "", fmt.Errorf("unexpected authn status %s after sending SMS. %w", o.userAuth.Status, ErrUnexpectedResponse)
	}
	return o.inputs.CodeSupplier(ctx, factor)
}

func (o *Client) verifyFactor(ctx context.Context, factor Factor, payload []byte) error {
	res, err := o.Request(ctx, http.MethodPost, "api/v1/authn/factors/"+factor.ID+"/verify", url.Values{}, payload, "json", true)
	if err != nil {
		return fmt.Errorf("failed authn verification for okta. Err: %s", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errResp, err := parseOktaError(res)
		if err != nil {
			return fmt.Errorf("%v %w", err, ErrUnexpectedResponse)
		}
		if res.StatusCode == http.StatusForbidden || res.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("failed authn. Reason: %s. %w", errResp.ErrorSummary, ErrInvalidCredentials)
		}
		return fmt.Errorf(
			"failed authn verification. errorCode: %s, errorSummary: %s %w",
			errResp.ErrorCode,
			errResp.ErrorSummary,
			ErrUnexpectedResponse)
	}

	*o.userAuth = userAuthn{}
	return json.NewDecoder(res.Body).Decode(o.userAuth)
}
