package sessioncache

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func tempStorePath(t *testing.T) string {
	dir, err := ioutil.TempDir("", "figgy-sessioncache")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "cache", "sts-sessions.json")
}

func TestFileStore(t *testing.T) {
	testStore(t, func() store {
		return NewFileStore(tempStorePath(t), 0)
	})
}

func TestFileStorePermissions(t *testing.T) {
	st := NewFileStore(tempStorePath(t), 0)
	require.NoError(t, st.Put(StringKey("k"), &Credential{Expiration: theDistantFuture}))

	info, err := os.Stat(st.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreCorruptFileIsMiss(t *testing.T) {
	st := NewFileStore(tempStorePath(t), 0)
	require.NoError(t, os.MkdirAll(filepath.Dir(st.Path), 0o700))
	require.NoError(t, ioutil.WriteFile(st.Path, []byte("{not json"), 0o600))

	_, err := st.Get(StringKey("k"))
	assert.True(t, xerrors.Is(err, ErrSessionNotFound))

	t.Run("put replaces corrupt db", func(t *testing.T) {
		require.NoError(t, st.Put(StringKey("k"), &Credential{AccessKeyID: "x", Expiration: theDistantFuture}))
		got, err := st.Get(StringKey("k"))
		if assert.NoError(t, err) {
			assert.Equal(t, "x", got.AccessKeyID)
		}
	})
}

func TestFileStoreExpiryWindow(t *testing.T) {
	now := time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC)
	st := NewFileStore(tempStorePath(t), 5*time.Minute)
	st.now = func() time.Time { return now }

	require.NoError(t, st.Put(StringKey("soon"), &Credential{Expiration: now.Add(time.Minute)}))
	require.NoError(t, st.Put(StringKey("later"), &Credential{Expiration: now.Add(time.Hour)}))

	_, err := st.Get(StringKey("soon"))
	assert.True(t, xerrors.Is(err, ErrSessionExpired), "expiring within the window is expired")

	_, err = st.Get(StringKey("later"))
	assert.NoError(t, err)
}

func TestFileStoreExpirationIsEpochMillis(t *testing.T) {
	st := NewFileStore(tempStorePath(t), 0)
	exp := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, st.Put(StringKey("k"), &Credential{Expiration: exp}))

	data, err := ioutil.ReadFile(st.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), fmt.Sprintf(`"expiration":%d`, exp.Unix()*1000))
}

func TestFileStoreConcurrentPut(t *testing.T) {
	st := NewFileStore(tempStorePath(t), 0)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := StringKey(fmt.Sprintf("key-%d", i))
			assert.NoError(t, st.Put(key, &Credential{AccessKeyID: key.Key(), Expiration: theDistantFuture}))
		}(i)
	}
	wg.Wait()

	keys, err := st.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 20, "no write is lost between writers of one process")
}

func TestFileStoreRebind(t *testing.T) {
	t.Run("new file records source", func(t *testing.T) {
		st := NewFileStore(tempStorePath(t), 0)
		wiped, err := st.Rebind("okta")
		require.NoError(t, err)
		assert.False(t, wiped)
		assert.Equal(t, "okta", st.Source())
	})

	t.Run("same source keeps sessions", func(t *testing.T) {
		st := NewFileStore(tempStorePath(t), 0)
		_, err := st.Rebind("okta")
		require.NoError(t, err)
		require.NoError(t, st.Put(StringKey("k"), &Credential{Expiration: theDistantFuture}))

		wiped, err := st.Rebind("okta")
		require.NoError(t, err)
		assert.False(t, wiped)
		_, err = st.Get(StringKey("k"))
		assert.NoError(t, err)
	})

	t.Run("changed source wipes sessions", func(t *testing.T) {
		st := NewFileStore(tempStorePath(t), 0)
		_, err := st.Rebind("okta")
		require.NoError(t, err)
		require.NoError(t, st.Put(StringKey("k"), &Credential{Expiration: theDistantFuture}))

		wiped, err := st.Rebind("bastion")
		require.NoError(t, err)
		assert.True(t, wiped)
		assert.Equal(t, "bastion", st.Source())
		_, err = st.Get(StringKey("k"))
		assert.True(t, xerrors.Is(err, ErrSessionNotFound))
	})
}

func TestFileStoreWipe(t *testing.T) {
	st := NewFileStore(tempStorePath(t), 0)
	assert.NoError(t, st.Wipe(), "wiping a missing file is fine")

	require.NoError(t, st.Put(StringKey("k"), &Credential{Expiration: theDistantFuture}))
	require.NoError(t, st.Wipe())

	_, err := os.Stat(st.Path)
	assert.True(t, os.IsNotExist(err))
}
