package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// Lifetimes of one-shot codes.
const (
	LinkCodeTTL   = 15 * time.Minute
	OAuthStateTTL = 15 * time.Minute
)

const (
	linkCodeDigits   = 6
	linkCodeAttempts = 5
)

const (
	sqlDeleteUserLinkCodes = `DELETE FROM link_codes WHERE user_id = ?`
	sqlInsertLinkCode      = `INSERT OR IGNORE INTO link_codes (code, user_id, expires_at) VALUES (?, ?, ?)`
	sqlSelectLinkCode      = `SELECT user_id, expires_at FROM link_codes WHERE code = ?`
	sqlDeleteLinkCode      = `DELETE FROM link_codes WHERE code = ?`
	sqlPurgeLinkCodes      = `DELETE FROM link_codes WHERE expires_at <= ?`

	sqlInsertOAuthState = `INSERT OR REPLACE INTO oauth_states (state, user_id, expires_at) VALUES (?, ?, ?)`
	sqlSelectOAuthState = `SELECT user_id, expires_at FROM oauth_states WHERE state = ?`
	sqlDeleteOAuthState = `DELETE FROM oauth_states WHERE state = ?`
	sqlPurgeOAuthStates = `DELETE FROM oauth_states WHERE expires_at <= ?`
)

// ErrCodeSpaceExhausted is returned when no free link code was found.
var ErrCodeSpaceExhausted = errors.New("store: could not allocate a unique link code")

// CreateLinkCode issues a fresh six-digit code that links a channel to user.
// Any earlier pending code for the user is revoked.
func (s *Store) CreateLinkCode(ctx context.Context, user string) (string, error) {
	var code string

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.nowFunc()

		if _, err := tx.ExecContext(ctx, sqlPurgeLinkCodes, now.Unix()); err != nil {
			return fmt.Errorf("store: purging link codes: %w", err)
		}

		if _, err := tx.ExecContext(ctx, sqlDeleteUserLinkCodes, user); err != nil {
			return fmt.Errorf("store: revoking link codes for %s: %w", user, err)
		}

		expires := now.Add(LinkCodeTTL).Unix()

		for range linkCodeAttempts {
			candidate, err := randomDigits(linkCodeDigits)
			if err != nil {
				return err
			}

			res, err := tx.ExecContext(ctx, sqlInsertLinkCode, candidate, user, expires)
			if err != nil {
				return fmt.Errorf("store: inserting link code: %w", err)
			}

			if n, _ := res.RowsAffected(); n == 1 {
				code = candidate
				return nil
			}
		}

		return ErrCodeSpaceExhausted
	})
	if err != nil {
		return "", err
	}

	return code, nil
}

// ConsumeLinkCode redeems code, returning the user it was issued to. A code
// works once; unknown or expired codes report ok=false.
func (s *Store) ConsumeLinkCode(ctx context.Context, code string) (user string, ok bool, err error) {
	return s.pop(ctx, sqlSelectLinkCode, sqlDeleteLinkCode, code)
}

// PutOAuthState remembers that the OAuth flow carrying state belongs to user.
func (s *Store) PutOAuthState(ctx context.Context, state, user string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := s.nowFunc()

		if _, err := tx.ExecContext(ctx, sqlPurgeOAuthStates, now.Unix()); err != nil {
			return fmt.Errorf("store: purging oauth states: %w", err)
		}

		if _, err := tx.ExecContext(ctx, sqlInsertOAuthState, state, user, now.Add(OAuthStateTTL).Unix()); err != nil {
			return fmt.Errorf("store: inserting oauth state: %w", err)
		}

		return nil
	})
}

// ConsumeOAuthState redeems an OAuth state value. Each state is accepted
// at most once.
func (s *Store) ConsumeOAuthState(ctx context.Context, state string) (user string, ok bool, err error) {
	return s.pop(ctx, sqlSelectOAuthState, sqlDeleteOAuthState, state)
}

// pop reads and deletes a one-shot row in one transaction.
func (s *Store) pop(ctx context.Context, selectSQL, deleteSQL, key string) (string, bool, error) {
	var (
		user string
		ok   bool
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var expires int64

		err := tx.QueryRowContext(ctx, selectSQL, key).Scan(&user, &expires)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("store: reading one-shot code: %w", err)
		}

		if _, err := tx.ExecContext(ctx, deleteSQL, key); err != nil {
			return fmt.Errorf("store: deleting one-shot code: %w", err)
		}

		ok = s.nowFunc().Unix() < expires

		return nil
	})
	if err != nil || !ok {
		return "", false, err
	}

	return user, true, nil
}

func randomDigits(n int) (string, error) {
	limit := big.NewInt(1)
	for range n {
		limit.Mul(limit, big.NewInt(10))
	}

	v, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("store: generating code: %w", err)
	}

	return fmt.Sprintf("%0*d", n, v), nil
}
