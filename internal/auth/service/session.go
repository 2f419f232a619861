package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/retrade/authmesh/internal/auth/domain"
	"github.com/retrade/authmesh/internal/auth/store"
	"github.com/retrade/authmesh/pkg/cryptox"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/revocation"
	"github.com/retrade/authmesh/pkg/slogx"
	"github.com/retrade/authmesh/pkg/tokens"
)

// SessionService logs accounts in and out. Every successful login is a
// LoginSession whose id is the sid of its tokens; revoking a session
// denylists that sid until its refresh token would have expired.
type SessionService struct {
	Store      store.Store
	Tokens     *tokens.Issuer
	Revocation *revocation.Checker

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Login checks the password and issues a TokenSet. Accounts with TOTP
// enabled get only a TWO_FACTOR_PENDING token; their session is recorded
// when the second factor completes.
func (s *SessionService) Login(ctx context.Context, username, password string, device domain.DeviceInfo) (tokens.TokenSet, error) {
	l := slogx.FromContext(ctx)

	account, err := s.Store.Accounts().GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return tokens.TokenSet{}, ErrInvalidCredentials
		}
		return tokens.TokenSet{}, err
	}
	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		l.Info("login failed", "account_id", account.ID)
		return tokens.TokenSet{}, ErrInvalidCredentials
	}
	if cryptox.NeedsRehash(account.PasswordHash) {
		s.rehash(ctx, account.ID, password)
	}

	set, err := s.Tokens.Issue(ctx, principal(account), "", account.TwoFactorEnabled())
	if err != nil {
		return tokens.TokenSet{}, err
	}
	if set.TwoFactorRequired {
		l.Info("second factor required", "account_id", account.ID)
		return set, nil
	}

	if err := s.record(ctx, set, device); err != nil {
		return tokens.TokenSet{}, err
	}
	return set, nil
}

// CompleteTwoFactor exchanges a pending token and a TOTP code for a full
// TokenSet and records the session.
func (s *SessionService) CompleteTwoFactor(ctx context.Context, pending, code string, device domain.DeviceInfo) (tokens.TokenSet, error) {
	set, err := s.Tokens.CompleteTwoFactor(ctx, pending, code)
	if err != nil {
		return tokens.TokenSet{}, err
	}
	if err := s.record(ctx, set, device); err != nil {
		return tokens.TokenSet{}, err
	}
	return set, nil
}

// Refresh exchanges a REFRESH token for a new ACCESS token.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (tokens.TokenSet, error) {
	return s.Tokens.Refresh(ctx, refreshToken)
}

// Logout revokes one session.
func (s *SessionService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	until := s.now().Add(s.Tokens.TTL(jwtx.KindRefresh))
	if err := s.Revocation.Revoke(ctx, sessionID, until); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	slogx.FromContext(ctx).Info("session revoked", "sid", sessionID)
	return nil
}

// RevokeAll revokes every session of the account whose refresh token could
// still be alive and returns how many were revoked.
func (s *SessionService) RevokeAll(ctx context.Context, accountID string) (int, error) {
	sessions, err := s.Store.Sessions().ListSessionsByAccount(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	now := s.now()
	refreshTTL := s.Tokens.TTL(jwtx.KindRefresh)
	until := now.Add(refreshTTL)

	var revoked int
	for _, sess := range sessions {
		if sess.CreatedAt.Add(refreshTTL).Before(now) {
			continue
		}
		if err := s.Revocation.Revoke(ctx, sess.ID, until); err != nil {
			return revoked, fmt.Errorf("failed to revoke session %s: %w", sess.ID, err)
		}
		revoked++
	}

	slogx.FromContext(ctx).Info("all sessions revoked", "account_id", accountID, "count", revoked)
	return revoked, nil
}

func (s *SessionService) record(ctx context.Context, set tokens.TokenSet, device domain.DeviceInfo) error {
	err := s.Store.Sessions().CreateSession(ctx, domain.LoginSession{
		ID:         set.SessionID,
		AccountID:  set.Subject,
		DeviceInfo: device.Normalize(),
		CreatedAt:  s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to record session: %w", err)
	}
	slogx.FromContext(ctx).Info("session started", "account_id", set.Subject, "sid", set.SessionID)
	return nil
}

func principal(a domain.Account) tokens.Principal {
	return tokens.Principal{Subject: a.ID, Username: a.Username, Roles: a.Roles}
}

// rehash upgrades a hash made with older argon2 parameters. Failure only
// costs another attempt on the next login.
func (s *SessionService) rehash(ctx context.Context, accountID, password string) {
	hash, err := cryptox.HashPassword(password)
	if err == nil {
		err = s.Store.Accounts().UpdatePasswordHash(ctx, accountID, hash)
	}
	if err != nil {
		slogx.FromContext(ctx).Warn("password rehash failed", "account_id", accountID, "error", err)
	}
}
