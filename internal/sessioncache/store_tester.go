package sessioncache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/xerrors"
)

// duplicates provider.CredentialCache
type store interface {
	Get(Key) (*Credential, error)
	Put(Key, *Credential) error
}

var theDistantFuture = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)
var theDistantPast = time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC)

func testStore(t *testing.T, storeFactory func() store) {
	tName := "put-get"
	t.Run(tName, func(t *testing.T) {
		st := storeFactory()
		sess := Credential{
			AccessKeyID:     "AKIA" + tName,
			SecretAccessKey: "secret",
			SessionToken:    "token",
			Expiration:      theDistantFuture,
		}
		key := StringKey(tName)

		err := st.Put(key, &sess)
		if err != nil {
			t.Fatalf("error on put: %s", err)
		}

		got, err := st.Get(key)
		if err != nil {
			t.Fatalf("error on get: %s", err)
		}
		assert.Equal(t, sess, *got)
	})

	tName = "get expired should return ErrSessionExpired"
	t.Run(tName, func(t *testing.T) {
		st := storeFactory()
		sess := Credential{Expiration: theDistantPast}
		key := StringKey(tName)

		err := st.Put(key, &sess)
		if err != nil {
			t.Fatalf("error on put: %s", err)
		}

		_, err = st.Get(key)
		if !xerrors.Is(err, ErrSessionExpired) {
			t.Fatalf("expected get err to be ErrSessionExpired; is %s", err)
		}
	})

	tName = "get unknown should return ErrSessionNotFound"
	t.Run(tName, func(t *testing.T) {
		st := storeFactory()
		_, err := st.Get(StringKey(tName))
		if !xerrors.Is(err, ErrSessionNotFound) {
			t.Fatalf("expected get err to be ErrSessionNotFound; is %s", err)
		}
	})

	tName = "put overwrites"
	t.Run(tName, func(t *testing.T) {
		st := storeFactory()
		key := StringKey(tName)
		first := Credential{AccessKeyID: "first", Expiration: theDistantFuture}
		second := Credential{AccessKeyID: "second", Expiration: theDistantFuture}

		assert.NoError(t, st.Put(key, &first))
		assert.NoError(t, st.Put(key, &second))

		got, err := st.Get(key)
		if assert.NoError(t, err) {
			assert.Equal(t, "second", got.AccessKeyID)
		}
	})
}
