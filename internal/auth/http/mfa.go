package http

import (
	"net/http"

	"github.com/retrade/authmesh/internal/auth/service"
	"github.com/retrade/authmesh/pkg/authsdk"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/slogx"
)

// MFAHandler handles all MFA-related endpoints.
type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleEnroll handles POST /v1/mfa/totp/enroll
//
//	@Summary		Enroll in TOTP MFA
//	@Description	Generates a TOTP secret for the caller. TOTP stays off until a code is confirmed through /v1/mfa/totp/enable.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.TOTPEnrollResponse	"TOTP secret and otpauth URL"
//	@Failure		401	{object}	authsdk.ErrorResponse		"Invalid or missing access token"
//	@Failure		409	{object}	authsdk.ErrorResponse		"MFA already enabled"
//	@Router			/v1/mfa/totp/enroll [post]
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := httpx.UserIDFromContext(ctx)

	enroll, err := h.MFAService.EnrollTOTP(ctx, accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slogx.FromContext(ctx).Info("totp enrollment started", "account_id", accountID)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TOTPEnrollResponse{
		Secret:  enroll.Secret,
		URL:     enroll.URL,
		Issuer:  enroll.Issuer,
		Account: enroll.Account,
	})
}

// HandleEnable handles POST /v1/mfa/totp/enable
//
//	@Summary		Confirm TOTP and enable MFA
//	@Description	Checks a code against the enrolled secret. Later logins require a second factor.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.TOTPCodeRequest	true	"TOTP code"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"Not enrolled"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid code or access token"
//	@Failure		409	{object}	authsdk.ErrorResponse	"MFA already enabled"
//	@Router			/v1/mfa/totp/enable [post]
func (h *MFAHandler) HandleEnable(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TOTPCodeRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil || req.Code == "" {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	ctx := r.Context()
	accountID := httpx.UserIDFromContext(ctx)
	if err := h.MFAService.EnableTOTP(ctx, accountID, req.Code); err != nil {
		writeError(w, r, err)
		return
	}
	slogx.FromContext(ctx).Info("totp enabled", "account_id", accountID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleDisable handles DELETE /v1/mfa/totp
//
//	@Summary		Disable TOTP MFA
//	@Description	Removes TOTP after checking a current code and revokes every session of the account.
//	@Tags			MFA
//	@Security		BearerAuth
//	@Accept			json
//	@Param			request	body	authsdk.TOTPCodeRequest	true	"TOTP code"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"MFA not enabled"
//	@Failure		401	{object}	authsdk.ErrorResponse	"Invalid code or access token"
//	@Router			/v1/mfa/totp [delete]
func (h *MFAHandler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	var req authsdk.TOTPCodeRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil || req.Code == "" {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	ctx := r.Context()
	accountID := httpx.UserIDFromContext(ctx)
	if err := h.MFAService.DisableTOTP(ctx, accountID, req.Code); err != nil {
		writeError(w, r, err)
		return
	}
	slogx.FromContext(ctx).Info("totp disabled", "account_id", accountID)
	w.WriteHeader(http.StatusNoContent)
}
