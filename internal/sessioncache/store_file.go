package sessioncache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

type fileDb struct {
	// Source names the session provider that wrote the sessions.
	Source   string                `json:"source,omitempty"`
	Sessions map[string]Credential `json:"sessions"`
}

func newFileDb(source string) *fileDb {
	return &fileDb{
		Source:   source,
		Sessions: map[string]Credential{},
	}
}

// FileStore stores all sessions of an operator in a single JSON file.
//
// Writes go to a temporary file that is renamed over the target, so a reader
// sees either the previous or the next version of the file, never a partial
// one. Writers within a process are serialized; there is no lock across
// processes, so concurrent processes race with last-writer-wins.
type FileStore struct {
	Path string
	// ExpiryWindow treats sessions expiring within the window as expired.
	ExpiryWindow time.Duration

	now func() time.Time
	mu  sync.Mutex
}

func NewFileStore(path string, window time.Duration) *FileStore {
	return &FileStore{Path: path, ExpiryWindow: window}
}

func (s *FileStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *FileStore) getDb() (*fileDb, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}

	var db fileDb
	if err := json.Unmarshal(data, &db); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal session cache file")
	}
	if db.Sessions == nil {
		db.Sessions = map[string]Credential{}
	}
	return &db, nil
}

func (s *FileStore) putDb(db *fileDb) error {
	bytes, err := json.Marshal(db)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session cache")
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), dirMode); err != nil {
		return errors.Wrap(err, "failed to create session cache directory")
	}
	if err := renameio.WriteFile(s.Path, bytes, fileMode); err != nil {
		return errors.Wrap(err, "failed to write session cache file")
	}
	return nil
}

// Get never returns a usable credential alongside an error. Any error means
// the caller should treat the lookup as a miss.
func (s *FileStore) Get(k Key) (*Credential, error) {
	keyStr := k.Key()

	currentDb, err := s.getDb()
	if err != nil {
		log.Debugf("cache get `%s`: miss (read error): %s", keyStr, err)
		return nil, ErrSessionNotFound
	}

	session, ok := currentDb.Sessions[keyStr]
	if !ok {
		log.Debugf("cache get `%s`: miss", keyStr)
		return nil, ErrSessionNotFound
	}

	if session.Expired(s.clock(), s.ExpiryWindow) {
		log.Debugf("cache get `%s`: expired", keyStr)
		return nil, ErrSessionExpired
	}

	log.Debugf("cache get `%s`: hit", keyStr)
	return &session, nil
}

func (s *FileStore) Put(k Key, session *Credential) error {
	keyStr := k.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	currentDb, err := s.getDb()
	if err != nil {
		// a missing or corrupt file is replaced by a fresh db
		log.Debugf("cache put: new db (%s)", err)
		currentDb = newFileDb("")
	}

	currentDb.Sessions[keyStr] = *session

	if err := s.putDb(currentDb); err != nil {
		log.Debugf("cache put `%s`: error (writing): %s", keyStr, err)
		return err
	}
	log.Debugf("cache put `%s`: success", keyStr)
	return nil
}

// Rebind ties the cache to source. Sessions written by a different source
// are discarded; it reports whether that happened.
func (s *FileStore) Rebind(source string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	currentDb, err := s.getDb()
	switch {
	case os.IsNotExist(errors.Cause(err)):
		return false, s.putDb(newFileDb(source))
	case err != nil:
		log.Debugf("cache rebind: discarding unreadable db: %s", err)
		return true, s.putDb(newFileDb(source))
	case currentDb.Source == source:
		return false, nil
	case currentDb.Source == "":
		currentDb.Source = source
		return false, s.putDb(currentDb)
	}

	log.WithField("from", currentDb.Source).WithField("to", source).
		Info("session source changed, wiping session cache")
	return true, s.putDb(newFileDb(source))
}

// Source returns the provider name recorded in the cache file, if any.
func (s *FileStore) Source() string {
	currentDb, err := s.getDb()
	if err != nil {
		return ""
	}
	return currentDb.Source
}

// Keys lists the keys of all cached sessions, expired ones included.
func (s *FileStore) Keys() ([]string, error) {
	currentDb, err := s.getDb()
	if os.IsNotExist(errors.Cause(err)) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(currentDb.Sessions))
	for k := range currentDb.Sessions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Wipe removes the cache file. A missing file is not an error.
func (s *FileStore) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove session cache file")
	}
	log.Debugf("cache wiped: %s", s.Path)
	return nil
}
