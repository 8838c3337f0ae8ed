package sessioncache

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sts"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Credential is a short-lived AWS credential as stored in the cache.
type Credential struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}

// FromSTS converts an STS credential response into a Credential.
func FromSTS(c *sts.Credentials) Credential {
	return Credential{
		AccessKeyID:     aws.StringValue(c.AccessKeyId),
		SecretAccessKey: aws.StringValue(c.SecretAccessKey),
		SessionToken:    aws.StringValue(c.SessionToken),
		Expiration:      aws.TimeValue(c.Expiration),
	}
}

// Expired reports whether the credential is expired at now, treating
// anything within window of its expiration as already expired.
func (c *Credential) Expired(now time.Time, window time.Duration) bool {
	return !c.Expiration.After(now.Add(window))
}

// ShortID is the tail of the access key id, safe to log.
func (c *Credential) ShortID() string {
	if len(c.AccessKeyID) < 4 {
		return c.AccessKeyID
	}
	return c.AccessKeyID[len(c.AccessKeyID)-4:]
}

// record is the on-disk form of a Credential; expiration is epoch millis.
type record struct {
	AccessKey  string `json:"access_key"`
	SecretKey  string `json:"secret_key"`
	Token      string `json:"token"`
	Expiration int64  `json:"expiration"`
}

func (c Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{
		AccessKey:  c.AccessKeyID,
		SecretKey:  c.SecretAccessKey,
		Token:      c.SessionToken,
		Expiration: c.Expiration.UnixMilli(),
	})
}

func (c *Credential) UnmarshalJSON(b []byte) error {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	*c = Credential{
		AccessKeyID:     r.AccessKey,
		SecretAccessKey: r.SecretKey,
		SessionToken:    r.Token,
		Expiration:      time.UnixMilli(r.Expiration).UTC(),
	}
	return nil
}

type Key interface {
	Key() string
}

// StringKey is a Key that is its own value.
type StringKey string

func (k StringKey) Key() string {
	return string(k)
}
