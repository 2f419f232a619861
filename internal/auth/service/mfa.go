package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/retrade/authmesh/internal/auth/domain"
	"github.com/retrade/authmesh/internal/auth/store"
	"github.com/retrade/authmesh/pkg/slogx"
)

// SessionRevoker is satisfied by *SessionService.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, accountID string) (int, error)
}

type MFAService struct {
	Store  store.Store
	Issuer string // Issuer name shown by authenticator apps

	// Sessions is optional. When set, disabling TOTP revokes every session.
	Sessions SessionRevoker
}

// EnrollTOTP generates a TOTP secret for the account and returns it with
// its otpauth URL. TOTP stays off until EnableTOTP confirms a code.
func (s *MFAService) EnrollTOTP(ctx context.Context, accountID string) (domain.MFAEnrollResponse, error) {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return domain.MFAEnrollResponse{}, err
	}
	if account.TwoFactorEnabled() {
		return domain.MFAEnrollResponse{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: account.Username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFAEnrollResponse{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	if err := s.Store.Accounts().UpdateMFASecret(ctx, accountID, key.Secret()); err != nil {
		return domain.MFAEnrollResponse{}, fmt.Errorf("failed to store MFA secret: %w", err)
	}

	return domain.MFAEnrollResponse{
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  s.Issuer,
		Account: account.Username,
	}, nil
}

// EnableTOTP confirms the enrolled secret with a code and turns TOTP on.
func (s *MFAService) EnableTOTP(ctx context.Context, accountID, code string) error {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return err
	}
	if account.TwoFactorEnabled() {
		return ErrMFAAlreadyEnabled
	}
	if account.MFASecret == nil || *account.MFASecret == "" {
		return ErrMFANotEnrolled
	}
	if !totp.Validate(code, *account.MFASecret) {
		return ErrInvalidTOTPCode
	}

	if err := s.Store.Accounts().EnableMFA(ctx, accountID); err != nil {
		return fmt.Errorf("failed to enable MFA: %w", err)
	}
	slogx.FromContext(ctx).Info("TOTP enabled", "account_id", accountID)
	return nil
}

// DisableTOTP turns TOTP off after checking a current code.
func (s *MFAService) DisableTOTP(ctx context.Context, accountID, code string) error {
	if err := s.verifyCode(ctx, accountID, code); err != nil {
		return err
	}
	if err := s.Store.Accounts().DisableMFA(ctx, accountID); err != nil {
		return fmt.Errorf("failed to disable MFA: %w", err)
	}
	slogx.FromContext(ctx).Info("TOTP disabled", "account_id", accountID)

	if s.Sessions != nil {
		if _, err := s.Sessions.RevokeAll(ctx, accountID); err != nil {
			return err
		}
	}
	return nil
}

// VerifyProof checks the second factor of a pending login.
func (s *MFAService) VerifyProof(ctx context.Context, subject, proof string) error {
	err := s.verifyCode(ctx, subject, proof)
	if errors.Is(err, ErrMFANotEnabled) || errors.Is(err, ErrAccountNotFound) {
		return ErrInvalidTOTPCode
	}
	return err
}

func (s *MFAService) verifyCode(ctx context.Context, accountID, code string) error {
	account, err := s.account(ctx, accountID)
	if err != nil {
		return err
	}
	if !account.TwoFactorEnabled() || account.MFASecret == nil {
		return ErrMFANotEnabled
	}
	if !totp.Validate(code, *account.MFASecret) {
		return ErrInvalidTOTPCode
	}
	return nil
}

func (s *MFAService) account(ctx context.Context, accountID string) (domain.Account, error) {
	a, err := s.Store.Accounts().GetAccountByID(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Account{}, ErrAccountNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}
