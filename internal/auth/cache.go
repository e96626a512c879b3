package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"

	"github.com/giantswarm/apiprobe/pkg/oauth"
)

// Cache persists credentials and discovered metadata per server origin.
// Load methods return nil without error when nothing is stored.
type Cache interface {
	LoadTokens(serverURL string) (*oauth.Token, error)
	SaveTokens(serverURL string, token *oauth.Token) error
	LoadClientInfo(serverURL string) (*oauth.ClientInfo, error)
	SaveClientInfo(serverURL string, info *oauth.ClientInfo) error
	LoadServerMetadata(serverURL string) (*oauth.ServerMetadata, error)
	SaveServerMetadata(serverURL string, metadata *oauth.ServerMetadata) error
	Clear(serverURL string) error
}

// DefaultCacheDir returns the default credential directory,
// $XDG_CONFIG_HOME/apiprobe/credentials.
func DefaultCacheDir() string {
	return filepath.Join(xdg.ConfigHome, "apiprobe", "credentials")
}

// CacheRecord is the on-disk record of one server origin.
type CacheRecord struct {
	// ServerURL is the origin this record belongs to.
	ServerURL string `json:"server_url"`

	Tokens         *oauth.Token          `json:"tokens,omitempty"`
	ClientInfo     *oauth.ClientInfo     `json:"client_info,omitempty"`
	ServerMetadata *oauth.ServerMetadata `json:"server_metadata,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// FileCache is a Cache backed by one JSON file per server origin.
//
// SECURITY: This cache handles sensitive OAuth credentials:
//   - Files are created with 0600 permissions (owner read/write only)
//   - The storage directory is created with 0700 permissions
//   - Token values are NEVER logged (only server URLs)
type FileCache struct {
	storageDir string
	logger     *slog.Logger
}

// FileCacheConfig configures the file cache.
type FileCacheConfig struct {
	// Dir is the storage directory. Defaults to DefaultCacheDir().
	Dir string

	Logger *slog.Logger
}

// NewFileCache creates the storage directory if needed and returns the cache.
func NewFileCache(cfg FileCacheConfig) (*FileCache, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = DefaultCacheDir()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	return &FileCache{storageDir: dir, logger: logger}, nil
}

// Dir returns the storage directory.
func (c *FileCache) Dir() string {
	return c.storageDir
}

// LoadTokens returns the cached tokens for the server's origin.
func (c *FileCache) LoadTokens(serverURL string) (*oauth.Token, error) {
	rec, err := c.Load(serverURL)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.Tokens, nil
}

// SaveTokens stores tokens for the server's origin.
// SECURITY: Token values are never logged.
func (c *FileCache) SaveTokens(serverURL string, token *oauth.Token) error {
	err := c.update(serverURL, func(rec *CacheRecord) {
		rec.Tokens = token
	})
	if err != nil {
		c.logger.Warn("SECURITY_AUDIT: OAuth token storage failed",
			"event", "token_store_failed",
			"server_url", serverURL,
			"error", err.Error(),
		)
		return err
	}

	c.logger.Info("SECURITY_AUDIT: OAuth token stored",
		"event", "token_stored",
		"server_url", serverURL,
		"expires_at", token.Expiry(),
		"has_refresh_token", token.RefreshToken != "",
	)
	return nil
}

// LoadClientInfo returns the cached client identity.
func (c *FileCache) LoadClientInfo(serverURL string) (*oauth.ClientInfo, error) {
	rec, err := c.Load(serverURL)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.ClientInfo, nil
}

// SaveClientInfo stores the client identity, replacing any previous one.
func (c *FileCache) SaveClientInfo(serverURL string, info *oauth.ClientInfo) error {
	if err := c.update(serverURL, func(rec *CacheRecord) {
		rec.ClientInfo = info
	}); err != nil {
		return err
	}

	c.logger.Debug("Stored OAuth client identity",
		"server_url", serverURL,
		"client_id", info.ClientID)
	return nil
}

// LoadServerMetadata returns cached discovery metadata regardless of age;
// freshness is checked by the caller.
func (c *FileCache) LoadServerMetadata(serverURL string) (*oauth.ServerMetadata, error) {
	rec, err := c.Load(serverURL)
	if err != nil || rec == nil {
		return nil, err
	}
	return rec.ServerMetadata, nil
}

// SaveServerMetadata stores discovery metadata.
func (c *FileCache) SaveServerMetadata(serverURL string, metadata *oauth.ServerMetadata) error {
	return c.update(serverURL, func(rec *CacheRecord) {
		rec.ServerMetadata = metadata
	})
}

// Clear deletes everything stored for the server's origin.
func (c *FileCache) Clear(serverURL string) error {
	path, err := c.recordPath(serverURL)
	if err != nil {
		return err
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock credential file: %w", err)
	}
	defer func() {
		_ = lock.Unlock()
		_ = os.Remove(path + ".lock")
	}()

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("SECURITY_AUDIT: OAuth credential deletion failed",
			"event", "credentials_delete_failed",
			"server_url", serverURL,
			"error", err.Error(),
		)
		return fmt.Errorf("failed to remove credential file: %w", err)
	}

	c.logger.Info("SECURITY_AUDIT: OAuth credentials deleted",
		"event", "credentials_deleted",
		"server_url", serverURL,
	)
	return nil
}

// HasRecord reports whether anything is stored for the server's origin.
func (c *FileCache) HasRecord(serverURL string) bool {
	path, err := c.recordPath(serverURL)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Load reads the whole record for the server's origin.
// It returns nil when no record exists.
func (c *FileCache) Load(serverURL string) (*CacheRecord, error) {
	path, err := c.recordPath(serverURL)
	if err != nil {
		return nil, err
	}
	return c.readRecord(serverURL, path)
}

// update applies fn to the current record and writes it back whole.
func (c *FileCache) update(serverURL string, fn func(*CacheRecord)) error {
	origin, err := oauth.ServerOrigin(serverURL)
	if err != nil {
		return err
	}
	path := c.pathForOrigin(origin)

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock credential file: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	rec, err := c.readRecord(serverURL, path)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &CacheRecord{}
	}
	rec.ServerURL = origin

	fn(rec)
	rec.UpdatedAt = time.Now().UTC()

	return c.writeRecord(path, rec)
}

func (c *FileCache) readRecord(serverURL, path string) (*CacheRecord, error) {
	// #nosec G304 -- path is derived from a hash of the origin, not user input
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &oauth.CacheError{Op: "read credentials", ServerURL: serverURL, Reason: "cannot read " + path, Err: err}
	}

	var rec CacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &oauth.CacheError{Op: "read credentials", ServerURL: serverURL, Reason: "corrupt credential file " + path, Err: err}
	}
	return &rec, nil
}

// writeRecord writes to a temporary file and renames it into place so a
// crash never leaves a truncated record.
func (c *FileCache) writeRecord(path string, rec *CacheRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(c.storageDir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to restrict credential file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	return nil
}

func (c *FileCache) recordPath(serverURL string) (string, error) {
	origin, err := oauth.ServerOrigin(serverURL)
	if err != nil {
		return "", err
	}
	return c.pathForOrigin(origin), nil
}

// pathForOrigin uses a SHA256 prefix of the origin as a filesystem-safe name.
func (c *FileCache) pathForOrigin(origin string) string {
	hash := sha256.Sum256([]byte(origin))
	return filepath.Join(c.storageDir, hex.EncodeToString(hash[:16])+".json")
}
