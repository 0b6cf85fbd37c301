package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/Atrox/homedir"
	"github.com/gorilla/securecookie"

	"github.com/mkrupp/homecase-console/internal/domain"
	"github.com/mkrupp/homecase-console/internal/infra/logging"
)

const (
	hashKeySize  = 64
	blockKeySize = 32
)

// ErrInvalidKeyFile is returned when the key file exists but has the wrong size.
var ErrInvalidKeyFile = errors.New("invalid cookie key file")

// CookieFileTokenRepositoryConfig holds configuration for the cookie file token repository.
type CookieFileTokenRepositoryConfig struct {
	// Path is the cookie jar file; "~" is expanded
	Path string `env:"PATH" default:"~/.config/homecase/cookies.json"`

	// KeyFile holds the hash and block keys; it is generated on first use
	KeyFile string `env:"KEY_FILE" default:"~/.config/homecase/cookies.key"`
}

// cookieRecord is one line of the jar. Value is a securecookie-encoded cookiePayload
// bound to the record's name, domain and path.
type cookieRecord struct {
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Path   string `json:"path"`
	Value  string `json:"value"`
}

type cookiePayload struct {
	Value     string `json:"v"`
	ExpiresAt int64  `json:"e,omitempty"`
}

// CookieFileTokenRepository implements Repository as a signed and encrypted cookie jar file.
type CookieFileTokenRepository struct {
	path  string
	codec *securecookie.SecureCookie
	log   logging.Logger
	now   func() time.Time
	m     *sync.Mutex
}

var _ Repository = (*CookieFileTokenRepository)(nil)

// CookieFileTokenRepositoryFactory creates a factory function that returns a new CookieFileTokenRepository.
// The factory function implements the RepositoryFactory type.
func CookieFileTokenRepositoryFactory(cfg CookieFileTokenRepositoryConfig) RepositoryFactory {
	return func(ctx context.Context) (Repository, error) {
		return NewCookieFileTokenRepository(ctx, cfg)
	}
}

// NewCookieFileTokenRepository creates a new CookieFileTokenRepository with the given configuration.
// Returns an error if the key file cannot be loaded or created.
func NewCookieFileTokenRepository(
	ctx context.Context,
	cfg CookieFileTokenRepositoryConfig,
) (*CookieFileTokenRepository, error) {
	path, err := homedir.Expand(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("expand jar path: %w", err)
	}

	keyPath, err := homedir.Expand(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("expand key path: %w", err)
	}

	log := logging.GetLogger("repo.token.cookie_file_token_repository").With(
		logging.Group("jar", "path", path, "keyFile", keyPath),
	)

	hashKey, blockKey, err := GetCookieKeys(keyPath)
	if err != nil {
		return nil, fmt.Errorf("get cookie keys: %w", err)
	}

	codec := securecookie.New(hashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(0) // expiry is carried in the payload

	log.DebugContext(ctx, "cookie jar ready")

	return &CookieFileTokenRepository{
		path:  path,
		codec: codec,
		log:   log,
		now:   time.Now,
		m:     new(sync.Mutex),
	}, nil
}

// GetCookieKeys loads the hash and block keys from path.
// If the file doesn't exist, it generates new keys and saves them to the file.
func GetCookieKeys(path string) (hashKey, blockKey []byte, err error) {
	buf, err := os.ReadFile(path)
	if err == nil {
		if len(buf) != hashKeySize+blockKeySize {
			return nil, nil, fmt.Errorf("%w: %d bytes", ErrInvalidKeyFile, len(buf))
		}

		return buf[:hashKeySize], buf[hashKeySize:], nil
	} else if !os.IsNotExist(err) {
		return nil, nil, fmt.Errorf("read key file: %w", err)
	}

	hashKey = securecookie.GenerateRandomKey(hashKeySize)
	blockKey = securecookie.GenerateRandomKey(blockKeySize)

	if hashKey == nil || blockKey == nil {
		return nil, nil, fmt.Errorf("generate keys: %w", ErrInvalidKeyFile)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("mkdir all: %w", err)
	}

	if err := writeFileAtomic(path, slices.Concat(hashKey, blockKey)); err != nil {
		return nil, nil, fmt.Errorf("write key file: %w", err)
	}

	return hashKey, blockKey, nil
}

// Get implements Repository.Get. Records that fail to decode are treated as absent.
func (r *CookieFileTokenRepository) Get(
	ctx context.Context,
	name string,
	scope domain.TokenScope,
) (entry *domain.StoredToken, found bool, err error) {
	path := normalizePath(scope.Path)

	err = r.withLock(ctx, syscall.LOCK_SH, func() error {
		records, err := r.load()
		if err != nil {
			return err
		}

		i := findRecord(records, name, scope.Domain, path)
		if i < 0 {
			return nil
		}

		var payload cookiePayload
		if err := r.codec.Decode(recordKey(name, scope.Domain, path), records[i].Value, &payload); err != nil {
			r.log.WarnContext(ctx, "discarding undecodable cookie", "name", name, "error", err)

			return nil
		}

		stored := domain.StoredToken{
			Name:   name,
			Value:  payload.Value,
			Domain: scope.Domain,
			Path:   path,
		}
		if payload.ExpiresAt > 0 {
			stored.ExpiresAt = time.Unix(payload.ExpiresAt, 0)
		}

		if stored.Expired(r.now()) {
			return nil
		}

		entry, found = &stored, true

		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return entry, found, nil
}

// Set implements Repository.Set.
func (r *CookieFileTokenRepository) Set(ctx context.Context, name string, value string, scope domain.TokenScope) error {
	path := normalizePath(scope.Path)

	payload := cookiePayload{Value: value}
	if at := expiresAt(r.now(), scope); !at.IsZero() {
		payload.ExpiresAt = at.Unix()
	}

	encoded, err := r.codec.Encode(recordKey(name, scope.Domain, path), payload)
	if err != nil {
		return fmt.Errorf("encode cookie: %w", err)
	}

	return r.withLock(ctx, syscall.LOCK_EX, func() error {
		records, err := r.load()
		if err != nil {
			return err
		}

		record := cookieRecord{Name: name, Domain: scope.Domain, Path: path, Value: encoded}

		if i := findRecord(records, name, scope.Domain, path); i >= 0 {
			records[i] = record
		} else {
			records = append(records, record)
		}

		return r.save(records)
	})
}

// Remove implements Repository.Remove.
func (r *CookieFileTokenRepository) Remove(ctx context.Context, name string, scope domain.TokenScope) error {
	path := normalizePath(scope.Path)

	return r.withLock(ctx, syscall.LOCK_EX, func() error {
		records, err := r.load()
		if err != nil {
			return err
		}

		i := findRecord(records, name, scope.Domain, path)
		if i < 0 {
			return nil
		}

		return r.save(slices.Delete(records, i, i+1))
	})
}

// Close implements Repository.Close. The jar holds no open handles.
func (r *CookieFileTokenRepository) Close() error {
	return nil
}

func (r *CookieFileTokenRepository) withLock(ctx context.Context, mode int, fn func() error) (err error) {
	r.m.Lock()
	defer r.m.Unlock()

	lockfile := r.path + ".lock"

	defer func() {
		if err != nil {
			r.log.ErrorContext(ctx, "cookie jar access failed", "lockfile", lockfile, "error", err)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(lockfile), 0o700); err != nil {
		return fmt.Errorf("mkdir all: %w", err)
	}

	file, err := os.OpenFile(lockfile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lockfile: %w", err)
	}
	defer file.Close()

	if err := syscall.Flock(int(file.Fd()), mode); err != nil {
		return fmt.Errorf("flock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(file.Fd()), syscall.LOCK_UN) }()

	return fn()
}

func (r *CookieFileTokenRepository) load() ([]cookieRecord, error) {
	buf, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("read jar: %w", err)
	}

	var records []cookieRecord
	if len(buf) == 0 {
		return records, nil
	}

	if err := json.Unmarshal(buf, &records); err != nil {
		return nil, fmt.Errorf("decode jar: %w", err)
	}

	return records, nil
}

func (r *CookieFileTokenRepository) save(records []cookieRecord) error {
	buf, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode jar: %w", err)
	}

	if err := writeFileAtomic(r.path, buf); err != nil {
		return fmt.Errorf("write jar: %w", err)
	}

	return nil
}

func findRecord(records []cookieRecord, name, domain, path string) int {
	return slices.IndexFunc(records, func(rec cookieRecord) bool {
		return rec.Name == name && rec.Domain == domain && rec.Path == path
	})
}

func recordKey(name, domain, path string) string {
	return name + "|" + domain + "|" + path
}

func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}

	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	return nil
}
