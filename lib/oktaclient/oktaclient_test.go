package oktaclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gock "gopkg.in/h2non/gock.v1"
)

func newSessionCache() *testSessionCache {
	return &testSessionCache{internalCache: map[string][]byte{}}
}

type testSessionCache struct {
	internalCache map[string][]byte
}

func (s *testSessionCache) Get(key string) ([]byte, error) {
	item, ok := s.internalCache[key]
	if !ok {
		return []byte{}, fmt.Errorf("Item not found")
	}
	return item, nil
}

func (s *testSessionCache) Put(key string, data []byte, label string) error {
	s.internalCache[key] = data
	return nil
}

func (s *testSessionCache) Delete(key string) error {
	delete(s.internalCache, key)
	return nil
}

type testMFAInputs struct {
	Code              string
	CodeSupplierError error
}

func (i testMFAInputs) CodeSupplier(ctx context.Context, factor Factor) (string, error) {
	return i.Code, i.CodeSupplierError
}

var testCreds = Credentials{
	Domain:   "canada",
	Username: "john",
	Password: "johnnyjohn123",
}

func newTestClient(t *testing.T, sCache SessionCache, inputs MFAInputs) *Client {
	oktaClient, err := New(testCreds, sCache, inputs, &Options{PollInterval: time.Millisecond})
	require.NoError(t, err, "No errors when creating a client")
	// intercept the http client with gock to mock out the Okta responses
	gock.InterceptClient(oktaClient.HTTPClient())
	return oktaClient
}

func mockAuthn() *gock.Response {
	return gock.New("https://canada").
		Post("/api/v1/authn").
		JSON(map[string]string{"username": testCreds.Username, "password": testCreds.Password}).
		Reply(200)
}

func mockCreateSession(sessionToken string) {
	gock.New("https://canada").
		Post("/api/v1/sessions").
		JSON(map[string]string{"sessionToken": sessionToken}).
		Reply(200).
		BodyString(sessionCreated)
}

func TestClientValidate(t *testing.T) {
	_, err := New(Credentials{Username: "john"}, nil, nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = New(Credentials{Domain: "canada"}, nil, nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestClientSession(t *testing.T) {
	defer gock.Off()
	ctx := context.Background()

	// uncomment this to get gock to dump all requests
	// gock.Observe(gock.DumpRequest)

	t.Run("cached session is reused when valid", func(t *testing.T) {
		defer gock.Flush()
		sCache := newSessionCache()
		sCache.Put("okta-session-cookie-john-canada", []byte("cachedsid"), "")
		oktaClient := newTestClient(t, sCache, testMFAInputs{})

		gock.New("https://canada").
			Get("/api/v1/sessions/me").
			MatchHeader("Cookie", "sid=cachedsid").
			Reply(200)

		sid, err := oktaClient.Session(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, "cachedsid", sid)
		assert.True(t, gock.IsDone())
	})

	t.Run("invalid cached session re-authenticates", func(t *testing.T) {
		defer gock.Flush()
		sCache := newSessionCache()
		sCache.Put("okta-session-cookie-john-canada", []byte("stalesid"), "")
		oktaClient := newTestClient(t, sCache, testMFAInputs{})

		gock.New("https://canada").
			Get("/api/v1/sessions/me").
			Reply(404)
		mockAuthn().BodyString(oktaSuccess("this-is-my-kebab-token"))
		mockCreateSession("this-is-my-kebab-token")

		sid, err := oktaClient.Session(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, "102nPbpzcb6QYqHoCQbtwV4aQ", sid)
		assert.Equal(t, []byte(sid), sCache.internalCache["okta-session-cookie-john-canada"], "new session is cached")
		assert.True(t, gock.IsDone())
	})

	t.Run("forceNew skips validation", func(t *testing.T) {
		defer gock.Flush()
		sCache := newSessionCache()
		sCache.Put("okta-session-cookie-john-canada", []byte("cachedsid"), "")
		oktaClient := newTestClient(t, sCache, testMFAInputs{})

		mockAuthn().BodyString(oktaSuccess("token2"))
		mockCreateSession("token2")

		_, err := oktaClient.Session(ctx, true)
		require.NoError(t, err)
		assert.True(t, gock.IsDone())
	})

	t.Run("bad password", func(t *testing.T) {
		defer gock.Flush()
		oktaClient := newTestClient(t, newSessionCache(), testMFAInputs{})

		mockAuthn().Status(401).BodyString(authFailed)

		_, err := oktaClient.Session(ctx, false)
		if assert.Error(t, err) {
			assert.True(t, errors.Is(err, ErrInvalidCredentials), "We get an invalid credentials error for 401")
		}
	})

	t.Run("unexpected validate status", func(t *testing.T) {
		defer gock.Flush()
		oktaClient := newTestClient(t, newSessionCache(), testMFAInputs{})

		gock.New("https://canada").
			Get("/api/v1/sessions/me").
			Reply(500)
		err := oktaClient.ValidateSession(ctx)
		assert.True(t, errors.Is(err, ErrUnexpectedResponse))
	})
}

func TestClientMFA(t *testing.T) {
	defer gock.Off()
	ctx := context.Background()

	t.Run("totp", func(t *testing.T) {
		defer gock.Flush()
		oktaClient := newTestClient(t, nil, testMFAInputs{Code: "123456"})

		mockAuthn().BodyString(oktaMFARequired("state1", totpFactors))
		gock.New("https://canada").
			Post("/api/v1/authn/factors/ostfm3hPNYSOIOIVTQWY/verify").
			JSON(map[string]string{"stateToken": "state1", "passCode": "123456"}).
			Reply(200).
			BodyString(oktaSuccess("mfa-token"))
		mockCreateSession("mfa-token")

		sid, err := oktaClient.Session(ctx, false)
		require.NoError(t, err)
		assert.Equal(t, "102nPbpzcb6QYqHoCQbtwV4aQ", sid)
		assert.True(t, gock.IsDone())
	})

	t.Run("wrong totp code", func(t *testing.T) {
		defer gock.Flush()
		oktaClient := newTestClient(t, nil, testMFAInputs{Code: "000000"})

		mockAuthn().BodyString(oktaMFARequired("state1", totpFactors))
		gock.New("https://canada").
			Post("/api/v1/authn/factors/ostfm3hPNYSOIOIVTQWY/verify").
			Reply(403).
			BodyString(`{"errorCode": "E0000068", "errorSummary": "Invalid Passcode/Answer"}`)

		_, err := oktaClient.Session(ctx, false)
		assert.True(t, errors.Is(err, ErrInvalidCredentials))
	})

	t.Run("sms sends the code before verifying it", func(t *testing.T) {
		defer gock.Flush()
		oktaClient := newTestClient(t, nil, testMFAInputs{Code: "654321"})

		mockAuthn().BodyString(oktaMFARequired("state5", smsFactors))
		gock.New("https://canada").
			Post("/api/v1/authn/factors/sms193zUBEROPBNZKPPE/verify").
			JSON(map[string]string{"stateToken": "state5"}).
			Reply(200).
			BodyString(`{"stateToken": "state5", "status": "MFA_CHALLENGE"}`)
		gock.New("https://canada").
			Post("/api/v1/authn/factors/sms193zUBEROPBNZKPPE/verify").
			JSON(map[string]string{"stateToken": "state5", "passCode": "654321"}).
			Reply(200).
			BodyString(oktaSuccess("sms-token"))
		mockCreateSession("sms-token")

		_, err := oktaClient.Session(ctx, false)
		require.NoError(t, err)
		assert.True(t, gock.IsDone())
	})

	t.Run("push polls until success", func(t *testing.T) {
		defer gock.Flush()
		oktaClient := newTestClient(t, nil, testMFAInputs{})

		mockAuthn().BodyString(oktaMFARequired("state2", pushFactors))
		gock.New("https://canada").
			Post("/api/v1/authn/factors/opfh52xcuft3J4uZc0g3/verify").
			Times(2).
			Reply(200).
			BodyString(oktaPushWaiting("state2"))
		gock.New("https://canada").
			Post("/api/v1/authn/factors/opfh52xcuft3J4uZc0g3/verify").
			Reply(200).
			BodyString(oktaSuccess("push-token"))
		mockCreateSession("push-token")

		_, err := oktaClient.Session(ctx, false)
		require.NoError(t, err)
		assert.True(t, gock.IsDone())
	})

	t.Run("push rejected", func(t *testing.T) {
		defer gock.Flush()
		oktaClient := newTestClient(t, nil, testMFAInputs{})

		mockAuthn().BodyString(oktaMFARequired("state3", pushFactors))
		gock.New("https://canada").
			Post("/api/v1/authn/factors/opfh52xcuft3J4uZc0g3/verify").
			Reply(200).
			BodyString(oktaPushResult("state3", FactorResultRejected))

		_, err := oktaClient.Session(ctx, false)
		assert.True(t, errors.Is(err, ErrInvalidCredentials))
	})

	t.Run("configured factor not enrolled", func(t *testing.T) {
		defer gock.Flush()
		creds := testCreds
		creds.FactorType = FactorTypePush
		oktaClient, err := New(creds, nil, testMFAInputs{}, nil)
		require.NoError(t, err)
		gock.InterceptClient(oktaClient.HTTPClient())

		mockAuthn().BodyString(oktaMFARequired("state4", totpFactors))

		_, err = oktaClient.Session(ctx, false)
		assert.True(t, errors.Is(err, ErrInvalidCredentials))
	})
}

func TestFetchAppLink(t *testing.T) {
	defer gock.Off()
	ctx := context.Background()

	sCache := newSessionCache()
	sCache.Put("okta-session-cookie-john-canada", []byte("appsid"), "")
	oktaClient := newTestClient(t, sCache, testMFAInputs{})

	gock.New("https://canada").
		Get("/home/amazon_aws/0oa1/272").
		MatchHeader("Cookie", "sid=appsid").
		Reply(200).
		BodyString("<html></html>")

	body, err := oktaClient.FetchAppLink(ctx, "https://canada/home/amazon_aws/0oa1/272")
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(body))

	t.Run("forget session", func(t *testing.T) {
		require.NoError(t, oktaClient.ForgetSession())
		assert.Equal(t, "", oktaClient.SessionID())
		_, ok := sCache.internalCache["okta-session-cookie-john-canada"]
		assert.False(t, ok)
	})
}
