package http

import (
	"net/http"

	"github.com/retrade/authmesh/internal/auth/domain"
	"github.com/retrade/authmesh/internal/auth/service"
	"github.com/retrade/authmesh/pkg/authsdk"
	"github.com/retrade/authmesh/pkg/httpx"
)

// AccountsHandler serves registration and profile changes.
type AccountsHandler struct {
	Accounts *service.AccountService
}

func accountResponse(a domain.Account) authsdk.AccountResponse {
	return authsdk.AccountResponse{
		ID:               a.ID,
		Username:         a.Username,
		Roles:            a.Roles,
		TwoFactorEnabled: a.TwoFactorEnabled(),
		CreatedAt:        a.CreatedAt,
	}
}

// HandleRegister handles POST /v1/accounts
//
//	@Summary		Register an account
//	@Description	Creates an account with the default BUYER and SELLER roles.
//	@Tags			Accounts
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RegisterRequest	true	"Credentials"
//	@Success		201		{object}	authsdk.AccountResponse
//	@Failure		400		{object}	authsdk.ErrorResponse	"Invalid username or weak password"
//	@Failure		409		{object}	authsdk.ErrorResponse	"Username taken"
//	@Router			/v1/accounts [post]
func (h *AccountsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	account, err := h.Accounts.Register(r.Context(), req.Username, req.Password, nil)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, accountResponse(account))
}

// HandleRename handles PUT /v1/accounts/me/username
//
//	@Summary		Rename the caller
//	@Description	Changes the username. Services caching usernames pick it up on their next identity sync.
//	@Tags			Accounts
//	@Security		BearerAuth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RenameRequest	true	"New username"
//	@Success		200		{object}	authsdk.AccountResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse
//	@Failure		409		{object}	authsdk.ErrorResponse	"Username taken"
//	@Router			/v1/accounts/me/username [put]
func (h *AccountsHandler) HandleRename(w http.ResponseWriter, r *http.Request) {
	accountID := httpx.UserIDFromContext(r.Context())

	var req authsdk.RenameRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	if err := h.Accounts.Rename(r.Context(), accountID, req.Username); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := h.Accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, accountResponse(account))
}

// HandleChangePassword handles POST /v1/auth/password
//
//	@Summary		Change password
//	@Description	Replaces the password and revokes every session of the account.
//	@Tags			Accounts
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.ChangePasswordRequest	true	"Passwords"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Router			/v1/auth/password [post]
func (h *AccountsHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChangePasswordRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	err := h.Accounts.ChangePassword(r.Context(), httpx.UserIDFromContext(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
