package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// User is the provider profile of the signed-in account.
type User struct {
	Login     string `json:"login"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatarUrl"`
	Email     string `json:"email,omitempty"`
}

// Session is a validated sign-in.
type Session struct {
	User            User      `json:"user"`
	AuthenticatedAt time.Time `json:"authenticatedAt"`
}

// storedAuth is the on-disk record.
type storedAuth struct {
	EncryptedToken  string    `json:"encryptedToken"`
	User            User      `json:"user"`
	AuthenticatedAt time.Time `json:"authenticatedAt"`
}

// Store persists one session with its access token sealed by a key kept in
// a separate 0600 file.
type Store struct {
	path    string
	keyPath string
}

// NewStore creates a Store writing the session to path. An empty keyPath
// places the key next to it.
func NewStore(path, keyPath string) *Store {
	if keyPath == "" {
		keyPath = path + ".key"
	}
	return &Store{path: path, keyPath: keyPath}
}

// Path returns the session file location.
func (s *Store) Path() string {
	return s.path
}

// Save writes the session atomically: readers see either the previous file
// or the complete new one.
func (s *Store) Save(token string, session Session) error {
	key, err := s.key(true)
	if err != nil {
		return err
	}
	sealed, err := seal(key, token)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(storedAuth{
		EncryptedToken:  sealed,
		User:            session.User,
		AuthenticatedAt: session.AuthenticatedAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return writeFileAtomic(s.path, data)
}

// Load returns the stored token and session. A missing file yields
// os.ErrNotExist; any other error means the record is unusable.
func (s *Store) Load() (string, *Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", nil, err
	}
	var stored storedAuth
	if err := json.Unmarshal(data, &stored); err != nil {
		return "", nil, fmt.Errorf("failed to decode session: %w", err)
	}
	key, err := s.key(false)
	if err != nil {
		return "", nil, err
	}
	token, err := open(key, stored.EncryptedToken)
	if err != nil {
		return "", nil, err
	}
	return token, &Session{User: stored.User, AuthenticatedAt: stored.AuthenticatedAt}, nil
}

// Delete removes the session file. Deleting a missing session is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// key reads the sealing key, generating it first when create is set.
func (s *Store) key(create bool) (*[32]byte, error) {
	data, err := os.ReadFile(s.keyPath)
	if errors.Is(err, os.ErrNotExist) {
		if create {
			return s.generateKey()
		}
		// Load reserves os.ErrNotExist for a missing session file.
		return nil, errors.New("session key is missing")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session key: %w", err)
	}
	return decodeKey(data)
}

func (s *Store) generateKey() (*[32]byte, error) {
	var key [32]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.keyPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	f, err := os.OpenFile(s.keyPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		// Another process won the race; use its key.
		return s.key(false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create session key: %w", err)
	}
	_, werr := f.WriteString(hex.EncodeToString(key[:]))
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(s.keyPath)
		return nil, fmt.Errorf("failed to write session key: %w", errors.Join(werr, cerr))
	}
	return &key, nil
}

func decodeKey(data []byte) (*[32]byte, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil || len(raw) != 32 {
		return nil, errors.New("session key is corrupt")
	}
	var key [32]byte
	copy(key[:], raw)
	return &key, nil
}

func seal(key *[32]byte, plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, key)
	return base64.StdEncoding.EncodeToString(box), nil
}

func open(key *[32]byte, sealed string) (string, error) {
	box, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return "", errors.New("stored token is corrupt")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, key)
	if !ok {
		return "", errors.New("stored token cannot be decrypted")
	}
	return string(plain), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("failed to set session permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
