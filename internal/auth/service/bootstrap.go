package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/retrade/authmesh/internal/auth/domain"
	"github.com/retrade/authmesh/internal/auth/store"
	"github.com/retrade/authmesh/pkg/slogx"
)

// RoleAdmin guards key management.
const RoleAdmin = "ADMIN"

var ErrBootstrapAlready = errors.New("system already bootstrapped")

// BootstrapService seeds the first administrator on an empty database.
type BootstrapService struct {
	Store    store.Store
	Accounts *AccountService
}

func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	empty, err := s.Store.Accounts().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !empty, nil
}

// Bootstrap creates the administrator. It fails with ErrBootstrapAlready
// once any account exists.
func (s *BootstrapService) Bootstrap(ctx context.Context, req domain.BootstrapData) (domain.Account, error) {
	l := slogx.FromContext(ctx)

	bootstrapped, err := s.IsBootstrapped(ctx)
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to check bootstrap state: %w", err)
	}
	if bootstrapped {
		return domain.Account{}, ErrBootstrapAlready
	}

	roles := slices.Clone(req.Roles)
	if !slices.Contains(roles, RoleAdmin) {
		roles = append(roles, RoleAdmin)
	}

	account, err := s.Accounts.Register(ctx, req.AdminUsername, req.AdminPassword, roles)
	if err != nil {
		l.Error("failed to create admin account", slog.Any("error", err))
		return domain.Account{}, err
	}

	l.Info("successfully bootstrapped system", slog.String("admin_account_id", account.ID))
	return account, nil
}
