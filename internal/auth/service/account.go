package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/retrade/authmesh/internal/auth/domain"
	"github.com/retrade/authmesh/internal/auth/store"
	"github.com/retrade/authmesh/pkg/cryptox"
	"github.com/retrade/authmesh/pkg/identsync"
	"github.com/retrade/authmesh/pkg/idx"
	"github.com/retrade/authmesh/pkg/slogx"
)

const minPasswordLength = 8

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

// DefaultRoles are granted to self-registered accounts.
var DefaultRoles = []string{"BUYER", "SELLER"}

// AccountService owns accounts and is the identity of record for every
// service that caches usernames.
type AccountService struct {
	Store    store.Store
	Sessions *SessionService
}

// Register creates an account. Roles default to DefaultRoles.
func (s *AccountService) Register(ctx context.Context, username, password string, roles []string) (domain.Account, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return domain.Account{}, ErrInvalidUsername
	}
	if len(password) < minPasswordLength {
		return domain.Account{}, ErrWeakPassword
	}
	if len(roles) == 0 {
		roles = DefaultRoles
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to hash password: %w", err)
	}

	account := domain.Account{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		Roles:        roles,
	}
	if err := s.Store.Accounts().CreateAccount(ctx, account); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Account{}, ErrUsernameTaken
		}
		return domain.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	slogx.FromContext(ctx).Info("account registered", "account_id", account.ID)
	return account, nil
}

// GetAccount fetches an account by id.
func (s *AccountService) GetAccount(ctx context.Context, accountID string) (domain.Account, error) {
	a, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrAccountNotFound
	}
	return a, err
}

// Rename changes the username. Dependent services pick the new name up on
// their next identity sync.
func (s *AccountService) Rename(ctx context.Context, accountID, username string) error {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}

	err := s.Store.Accounts().UpdateUsername(ctx, accountID, username)
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		return ErrUsernameTaken
	case errors.Is(err, store.ErrNotFound):
		return ErrAccountNotFound
	case err != nil:
		return fmt.Errorf("failed to rename account: %w", err)
	}

	slogx.FromContext(ctx).Info("account renamed", "account_id", accountID)
	return nil
}

// ChangePassword replaces the password and revokes every session of the
// account, the current one included.
func (s *AccountService) ChangePassword(ctx context.Context, accountID, current, next string) error {
	account, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := cryptox.VerifyPassword(current, account.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < minPasswordLength {
		return ErrWeakPassword
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.Store.Accounts().UpdatePasswordHash(ctx, accountID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if _, err := s.Sessions.RevokeAll(ctx, accountID); err != nil {
		return err
	}
	return nil
}

// LookupAccount answers identity sync queries from dependent services.
func (s *AccountService) LookupAccount(ctx context.Context, accountID, knownUsername string) (identsync.Lookup, error) {
	account, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return identsync.Lookup{Valid: false}, nil
	}
	if err != nil {
		return identsync.Lookup{}, err
	}
	return identsync.Lookup{
		Valid:    true,
		Username: account.Username,
		Changed:  account.Username != knownUsername,
	}, nil
}
