// Package oktaclient establishes and caches Okta identity sessions.
package oktaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/publicsuffix"
)

const (
	Timeout             = time.Duration(60 * time.Second)
	DefaultPollInterval = 2 * time.Second

	sessionCookieName = "sid"
)

type Credentials struct {
	Domain   string
	Username string
	Password string
	// FactorType selects an MFA factor; empty picks the first supported one.
	FactorType string
}

func (c Credentials) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("okta domain is required. %w", ErrInvalidCredentials)
	}
	if c.Username == "" {
		return fmt.Errorf("okta username is required. %w", ErrInvalidCredentials)
	}
	return nil
}

// SessionCache persists the Okta session cookie between invocations.
type SessionCache interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte, label string) error
	Delete(key string) error
}

type Options struct {
	// user supplied http client. If passed in this will replace the default
	HTTPClient *http.Client
	// interval between Okta Verify push polls. default 2s
	PollInterval time.Duration
}

type Client struct {
	BaseURL *url.URL

	creds        Credentials
	sessions     SessionCache
	inputs       MFAInputs
	client       http.Client
	userAuth     *userAuthn
	pollInterval time.Duration
}

// New creates a client for the Okta org in creds.Domain. A nil sessions
// disables session cookie caching.
func New(creds Credentials, sessions SessionCache, inputs MFAInputs, opts *Options) (*Client, error) {
	if opts == nil {
		opts = &Options{}
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(fmt.Sprintf("https://%s", creds.Domain))
	if err != nil {
		return nil, fmt.Errorf("%v %w", err, ErrInvalidCredentials)
	}

	var client http.Client
	if opts.HTTPClient != nil {
		client = *opts.HTTPClient
	} else {
		client = http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				TLSHandshakeTimeout: Timeout,
			},
			Timeout: Timeout,
		}
	}
	if client.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("%v %w", "Unable to create cookie jar", err)
		}
		client.Jar = jar
	}

	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = DefaultPollInterval
	}

	o := &Client{
		BaseURL:      base,
		creds:        creds,
		sessions:     sessions,
		inputs:       inputs,
		client:       client,
		userAuth:     &userAuthn{},
		pollInterval: pollInterval,
	}

	// failing to retrieve a cached cookie shouldn't fail the entire operation.
	if err := o.retrieveSessionCookie(); err != nil {
		log.Debug("Unable to retrieve session, got err: ", err)
	}
	return o, nil
}

// HTTPClient exposes the underlying client so tests can intercept it.
func (o *Client) HTTPClient() *http.Client {
	return &o.client
}

// returns the session key that is username and domain aware.
func (o *Client) sessionCookieKey() string {
	return "okta-session-cookie-" + o.creds.Username + "-" + o.creds.Domain
}

func (o *Client) retrieveSessionCookie() error {
	if o.sessions == nil {
		return fmt.Errorf("session NOT retrieved. Reason: Session Backend not defined")
	}
	data, err := o.sessions.Get(o.sessionCookieKey())
	if err != nil {
		return err
	}
	o.setSessionCookie(string(data))
	log.Debug("Using cached Okta session")
	return nil
}

func (o *Client) setSessionCookie(sid string) {
	o.client.Jar.SetCookies(o.BaseURL, []*http.Cookie{
		{
			Name:  sessionCookieName,
			Value: sid,
		},
	})
}

// SessionID returns the current session cookie value, or "".
func (o *Client) SessionID() string {
	for _, cookie := range o.client.Jar.Cookies(o.BaseURL) {
		if cookie.Name == sessionCookieName {
			return cookie.Value
		}
	}
	return ""
}

func (o *Client) saveSessionCookie(sid string) error {
	if o.sessions == nil {
		return nil
	}
	log.Debug("Saving Okta session cookie")
	return o.sessions.Put(o.sessionCookieKey(), []byte(sid), "okta session cookie for "+o.creds.Username)
}

// ForgetSession drops the session cookie from memory and from the cache.
func (o *Client) ForgetSession() error {
	o.setSessionCookie("")
	if o.sessions == nil {
		return nil
	}
	return o.sessions.Delete(o.sessionCookieKey())
}

// SetPassword replaces the password used by the next authentication.
func (o *Client) SetPassword(password string) {
	o.creds.Password = password
}

// Session returns a valid Okta session id. The cached session is reused
// unless forceNew is set or Okta reports it invalid; otherwise the user is
// authenticated from scratch.
func (o *Client) Session(ctx context.Context, forceNew bool) (string, error) {
	if !forceNew && o.SessionID() != "" {
		err := o.ValidateSession(ctx)
		if err == nil {
			return o.SessionID(), nil
		}
		log.Debugf("cached Okta session unusable: %s", err)
	}

	if err := o.AuthenticateUser(ctx); err != nil {
		return "", err
	}
	return o.CreateSession(ctx)
}

// Sends a request to the Okta Sessions API to validate if the session cookie
// is valid or not.
func (o *Client) ValidateSession(ctx context.Context) error {
	log.Debug("Checking if we have a valid Okta session")
	res, err := o.Request(ctx, http.MethodGet, "api/v1/sessions/me", url.Values{}, []byte{}, "json", false)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	// https://developer.okta.com/docs/reference/api/sessions/#get-current-session
	// an invalid session is a 404
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound, http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("session is invalid. %w", ErrInvalidSession)
	default:
		return fmt.Errorf("unexpected status code: %d. %w", res.StatusCode, ErrUnexpectedResponse)
	}
}

// Will authenticate a user and obtain a one time session token, completing
// an MFA challenge when Okta asks for one.
//
// https://developer.okta.com/docs/reference/api/authn
func (o *Client) AuthenticateUser(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{"username": o.creds.Username, "password": o.creds.Password})
	if err != nil {
		return err
	}

	log.Debug("Posting first call to authenticate the user.")
	res, err := o.Request(ctx, http.MethodPost, "api/v1/authn", url.Values{}, payload, "json", true)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("authentication failed for %s. %w", o.creds.Username, ErrInvalidCredentials)
	} else if res.StatusCode != http.StatusOK {
		return fmt.Errorf("authn returned %d. %w", res.StatusCode, ErrUnexpectedResponse)
	}

	*o.userAuth = userAuthn{}
	if err := json.NewDecoder(res.Body).Decode(o.userAuth); err != nil {
		return err
	}

	switch o.userAuth.Status {
	case StatusMFARequired, StatusMFAChallenge:
		log.Info("Requesting MFA. Please complete two-factor authentication with your second device")
		if err := o.challengeMFA(ctx); err != nil {
			return err
		}
	case StatusPasswordExpired:
		return fmt.Errorf("password is expired, login to Okta console to change. %w", ErrInvalidCredentials)
	case StatusLockedOut:
		return fmt.Errorf("account %s is locked out. %w", o.creds.Username, ErrInvalidCredentials)
	}

	if o.userAuth.SessionToken == "" {
		log.Debug("Auth failed. Reason: Session token isn't present.")
		return fmt.Errorf("authentication failed for %s, session token not present. %w", o.creds.Username, ErrInvalidSession)
	}
	return nil
}

// CreateSession trades the session token of the last authentication for a
// session cookie, caches it and returns its id.
func (o *Client) CreateSession(ctx context.Context) (string, error) {
	payload, err := json.Marshal(sessionRequest{SessionToken: o.userAuth.SessionToken})
	if err != nil {
		return "", err
	}

	res, err := o.Request(ctx, http.MethodPost, "api/v1/sessions", url.Values{}, payload, "json", true)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("creating session returned %d. %w", res.StatusCode, ErrInvalidSession)
	}

	var session sessionResponse
	if err := json.NewDecoder(res.Body).Decode(&session); err != nil {
		return "", err
	}
	if session.ID == "" {
		return "", fmt.Errorf("session id not present. %w", ErrInvalidSession)
	}

	o.setSessionCookie(session.ID)
	if err := o.saveSessionCookie(session.ID); err != nil {
		log.Warnf("unable to cache Okta session: %s", err)
	}
	return session.ID, nil
}

// FetchAppLink loads an Okta app embed link within the current session and
// returns the page body.
func (o *Client) FetchAppLink(ctx context.Context, link string) ([]byte, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	// the jar only covers the org domain
	if len(o.client.Jar.Cookies(u)) == 0 {
		req.Header.Set("Cookie", sessionCookieName+"="+o.SessionID())
	}
	req.Header.Set("Accept-Encoding", "identity")

	log.Debug("GET ", u.String())
	res, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s. %w", u, res.Status, ErrUnexpectedResponse)
	}
	return ioutil.ReadAll(res.Body)
}

// helper function to get a url, including path, for an Okta api or app.
func (o *Client) GetURL(path string) (*url.URL, error) {
	return url.Parse(fmt.Sprintf("%s/%s", o.BaseURL, path))
}

// Makes a request to Okta. format "json" sets json headers; followRedirects
// false returns redirect responses as is.
func (o *Client) Request(ctx context.Context, method string, path string, queryParams url.Values, data []byte, format string, followRedirects bool) (*http.Response, error) {
	requestURL, err := o.GetURL(path)
	if err != nil {
		return nil, err
	}
	requestURL.RawQuery = queryParams.Encode()

	req, err := http.NewRequestWithContext(ctx, method, requestURL.String(), bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if format == "json" {
		req.Header = http.Header{
			"Accept":        []string{"application/json"},
			"Content-Type":  []string{"application/json"},
			"Cache-Control": []string{"no-cache"},
		}
	} else {
		// disable gzip encoding; it was causing spurious EOFs
		req.Header = http.Header{
			"Accept-Encoding": []string{"identity"},
		}
	}

	client := o.client
	if !followRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	log.Debug(method, " ", requestURL.String())
	return client.Do(req)
}

func parseOktaError(res *http.Response) (*errorResponse, error) {
	var errResp errorResponse
	if err := json.NewDecoder(res.Body).Decode(&errResp); err != nil {
		log.Debug("parseOktaError parsing error: ", err)
		return nil, err
	}
	log.Debug("Error from Okta: ", errResp)
	return &errResp, nil
}
