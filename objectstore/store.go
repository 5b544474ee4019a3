package objectstore

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/easylabel/easylabel-backend/utils"
)

// Store is the object storage contract the workflow consumes. Keys are
// slash-separated paths within a bucket.
type Store interface {
	// Put stores the object bytes under bucket/key
	Put(bucket, key string, data io.Reader, contentType string) error
	// Get downloads the object to a local temp file and returns its path
	Get(bucket, key string) (string, error)
	// List returns object keys under prefix, filtered to image extensions
	List(bucket, prefix string) ([]string, error)
	// Delete removes an object
	Delete(bucket, key string) error
	// Move relocates an object under targetPrefix (copy + delete)
	Move(bucket, key, targetPrefix string) error
	// Exists reports whether an object is present
	Exists(bucket, key string) bool
	// PresignedURL generates a signed, expiring download URL
	PresignedURL(bucket, key string, ttl time.Duration) (string, error)
}

// LocalObjectStore implements Store on the local filesystem.
type LocalObjectStore struct {
	basePath   string // absolute root holding one directory per bucket
	baseURL    string
	signingKey []byte
}

// NewLocalObjectStore creates a filesystem-backed object store rooted at
// basePath. Signed download URLs are issued under baseURL.
func NewLocalObjectStore(basePath, baseURL string, signingKey []byte) (*LocalObjectStore, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}
	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}
	log.Printf("objectstore: initialized local store at %s", absBasePath)
	return &LocalObjectStore{
		basePath:   absBasePath,
		baseURL:    strings.TrimRight(baseURL, "/"),
		signingKey: signingKey,
	}, nil
}

// resolve calculates the absolute path for bucket/key and rejects anything
// escaping the store root.
func (s *LocalObjectStore) resolve(bucket, key string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(bucket, filepath.FromSlash(key)))
	fullPath := filepath.Join(s.basePath, cleaned)
	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s/%s': %w", bucket, key, err)
	}
	if absFullPath != s.basePath && !strings.HasPrefix(absFullPath, s.basePath+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid key: access denied for '%s/%s'", bucket, key)
	}
	return absFullPath, nil
}

// Put stores the object, creating parent directories as needed. A partial
// write is removed rather than left behind.
func (s *LocalObjectStore) Put(bucket, key string, data io.Reader, contentType string) error {
	fullPath, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create object directory for '%s': %w", key, err)
	}

	outFile, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create object file '%s': %w", key, err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullPath)
		return fmt.Errorf("failed to write object '%s': %w", key, err)
	}
	return nil
}

// Get copies the object to a temp file and returns the temp path. The caller
// removes the file when done.
func (s *LocalObjectStore) Get(bucket, key string) (string, error) {
	fullPath, err := s.resolve(bucket, key)
	if err != nil {
		return "", err
	}

	src, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("object not found at '%s/%s': %w", bucket, key, err)
		}
		return "", fmt.Errorf("failed to open object '%s/%s': %w", bucket, key, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "easylabel-*"+path.Ext(key))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for '%s': %w", key, err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to copy object '%s' to temp file: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp file for '%s': %w", key, err)
	}
	return tmp.Name(), nil
}

// List walks the bucket under prefix and returns keys with image extensions.
func (s *LocalObjectStore) List(bucket, prefix string) ([]string, error) {
	bucketPath, err := s.resolve(bucket, ".")
	if err != nil {
		return nil, err
	}

	keys := []string{}
	err = filepath.WalkDir(bucketPath, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(bucketPath, p)
		if relErr != nil {
			return relErr
		}
		key := filepath.ToSlash(rel)
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		if !utils.IsImageFile(key) {
			return nil
		}
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list objects in '%s/%s': %w", bucket, prefix, err)
	}
	return keys, nil
}

// Delete removes an object, treating an already-absent object as success.
func (s *LocalObjectStore) Delete(bucket, key string) error {
	fullPath, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object '%s/%s': %w", bucket, key, err)
	}
	return nil
}

// Move copies the object under targetPrefix, keeping its base name, then
// deletes the original.
func (s *LocalObjectStore) Move(bucket, key, targetPrefix string) error {
	newKey := path.Join(targetPrefix, path.Base(key))

	srcPath, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("failed to open object '%s/%s' for move: %w", bucket, key, err)
	}
	defer src.Close()

	if err := s.Put(bucket, newKey, src, ""); err != nil {
		return fmt.Errorf("failed to copy object to '%s': %w", newKey, err)
	}
	return s.Delete(bucket, key)
}

// Exists reports whether an object is present.
func (s *LocalObjectStore) Exists(bucket, key string) bool {
	fullPath, err := s.resolve(bucket, key)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// FullPath exposes the resolved filesystem path for the download handler.
func (s *LocalObjectStore) FullPath(bucket, key string) (string, error) {
	return s.resolve(bucket, key)
}

// PresignedURL issues an HMAC-signed download URL valid until the TTL
// elapses.
func (s *LocalObjectStore) PresignedURL(bucket, key string, ttl time.Duration) (string, error) {
	if !s.Exists(bucket, key) {
		return "", fmt.Errorf("object not found at '%s/%s'", bucket, key)
	}
	expires := time.Now().Add(ttl).Unix()
	sig := s.sign(bucket, key, expires)
	u := fmt.Sprintf("%s/api/files/%s/%s?expires=%d&signature=%s",
		s.baseURL, url.PathEscape(bucket), escapeKeyPath(key), expires, sig)
	return u, nil
}

// escapeKeyPath escapes each key segment while keeping the slashes that
// structure the download route.
func escapeKeyPath(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

// VerifySignature checks a presented signature against the expiry and key.
func (s *LocalObjectStore) VerifySignature(bucket, key string, expires int64, signature string) bool {
	if time.Now().Unix() > expires {
		return false
	}
	expected := s.sign(bucket, key, expires)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *LocalObjectStore) sign(bucket, key string, expires int64) string {
	mac := hmac.New(sha256.New, s.signingKey)
	fmt.Fprintf(mac, "%s/%s:%d", bucket, key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
