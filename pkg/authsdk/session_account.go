package authsdk

import (
	"context"
	"net/http"
)

// Rename changes the caller's username.
func (s *Session) Rename(ctx context.Context, username string) (*AccountResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/v1/accounts/me/username", RenameRequest{Username: username})
	if err != nil {
		return nil, err
	}

	var account AccountResponse
	if err := decodeJSON(resp, &account, http.StatusOK); err != nil {
		return nil, err
	}
	return &account, nil
}

// ChangePassword replaces the password. The server revokes every session of
// the account, this one included.
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/password", ChangePasswordRequest{
		CurrentPassword: current,
		NewPassword:     next,
	})
	if err != nil {
		return err
	}
	return checkStatusNoContent(resp)
}
