package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tonimelisma/pickrelay/internal/tokenfile"
)

// FileStore keeps one token file per user in a directory. It backs the
// single-user CLI mode.
type FileStore struct {
	dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is created
// on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Path returns the token file path for user.
func (s *FileStore) Path(user string) string {
	return filepath.Join(s.dir, sanitizeUser(user)+".json")
}

// Get implements CredentialStore.
func (s *FileStore) Get(_ context.Context, user string) (*Credentials, error) {
	tf, err := tokenfile.Load(s.Path(user))
	if err != nil {
		return nil, err
	}

	if tf == nil {
		return nil, nil //nolint:nilnil // absent credentials are not an error
	}

	creds := fromOAuth2(tf.Token)
	creds.Email = tf.Email

	return creds, nil
}

// Put implements CredentialStore.
func (s *FileStore) Put(_ context.Context, user string, creds *Credentials) error {
	if err := tokenfile.Save(s.Path(user), &tokenfile.File{
		Token: creds.oauth2Token(),
		Email: creds.Email,
	}); err != nil {
		return fmt.Errorf("auth: saving credentials for %s: %w", user, err)
	}

	return nil
}

// Remove deletes the user's token file. Reports whether one existed.
func (s *FileStore) Remove(user string) (bool, error) {
	return tokenfile.Remove(s.Path(user))
}

// sanitizeUser maps a user key onto a safe file name component.
func sanitizeUser(user string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, user)
}
