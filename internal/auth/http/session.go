package http

import (
	"net/http"

	"github.com/retrade/authmesh/internal/auth/service"
	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/authsdk"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/retrade/authmesh/pkg/slogx"
	"github.com/retrade/authmesh/pkg/tokens"
)

// SessionHandler serves login, refresh, 2FA completion and logout. Tokens
// are returned in the body and in per-kind cookies.
type SessionHandler struct {
	Sessions *service.SessionService
	Access   *authn.Verifier
	Cookies  httpx.CookieConfig
}

func (h *SessionHandler) writeTokenSet(w http.ResponseWriter, set tokens.TokenSet) {
	for _, tok := range set.Tokens {
		httpx.SetTokenCookie(w, h.Cookies, tok)
	}
	httpx.WriteJSON(w, http.StatusOK, set)
}

func (h *SessionHandler) clearCookies(w http.ResponseWriter, r *http.Request, kinds ...jwtx.Kind) {
	for _, kind := range kinds {
		if h.Cookies.Present(r, kind) {
			httpx.ClearTokenCookie(w, h.Cookies, kind)
		}
	}
}

// HandleLogin handles POST /v1/auth/login
//
//	@Summary		Log in
//	@Description	Checks the password and returns ACCESS and REFRESH tokens.
//	@Description	Accounts with TOTP enabled receive only a TWO_FACTOR_PENDING token and two_factor_required=true.
//	@Description	Device headers X-Device-Fingerprint, X-Device-Name, X-IP-Address and X-Location are recorded with the session.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.LoginRequest		true	"Credentials"
//	@Success		200		{object}	authsdk.TokenSetResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid credentials"
//	@Failure		429		{object}	authsdk.ErrorResponse	"Rate limited"
//	@Router			/v1/auth/login [post]
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil || req.Username == "" || req.Password == "" {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	set, err := h.Sessions.Login(r.Context(), req.Username, req.Password, deviceFromRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeTokenSet(w, set)
}

// HandleRefresh handles POST /v1/auth/refresh
//
//	@Summary		Refresh the access token
//	@Description	Exchanges a REFRESH token, from the body or the REFRESH_TOKEN cookie, for a new ACCESS token.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	false	"Refresh token"
//	@Success		200		{object}	authsdk.TokenSetResponse
//	@Failure		401		{object}	authsdk.ErrorResponse
//	@Router			/v1/auth/refresh [post]
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if err := httpx.DecodeJSON(r, &req, true); err != nil {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	raw := req.RefreshToken
	if raw == "" {
		raw, _ = authn.CookieSource(r, h.Cookies.Names).Credential(jwtx.KindRefresh)
	}
	if raw == "" {
		httpx.WriteUnauthorized(w)
		return
	}

	set, err := h.Sessions.Refresh(r.Context(), raw)
	if err != nil {
		if jwtx.KindOf(err) != "" && req.RefreshToken == "" {
			h.clearCookies(w, r, jwtx.KindRefresh)
		}
		writeError(w, r, err)
		return
	}
	h.writeTokenSet(w, set)
}

// HandleCompleteTwoFactor handles POST /v1/auth/2fa/complete
//
//	@Summary		Complete a two-factor login
//	@Description	Exchanges the TWO_FACTOR_PENDING token, as bearer or TWO_FA_TOKEN cookie, and a TOTP code for ACCESS and REFRESH tokens.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.TwoFactorCompleteRequest	true	"TOTP code"
//	@Success		200		{object}	authsdk.TokenSetResponse
//	@Failure		400		{object}	authsdk.ErrorResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"Invalid pending token or code"
//	@Router			/v1/auth/2fa/complete [post]
func (h *SessionHandler) HandleCompleteTwoFactor(w http.ResponseWriter, r *http.Request) {
	src := authn.FirstOf(authn.HeaderSource(r.Header), authn.CookieSource(r, h.Cookies.Names))
	pending, ok := src.Credential(jwtx.KindTwoFactorPending)
	if !ok {
		httpx.WriteUnauthorized(w)
		return
	}

	var req authsdk.TwoFactorCompleteRequest
	if err := httpx.DecodeJSON(r, &req, false); err != nil || req.Code == "" {
		httpx.ErrInvalidRequest.WriteError(w)
		return
	}

	set, err := h.Sessions.CompleteTwoFactor(r.Context(), pending, req.Code, deviceFromRequest(r))
	if err != nil {
		if jwtx.KindOf(err) != "" {
			h.clearCookies(w, r, jwtx.KindTwoFactorPending)
		}
		writeError(w, r, err)
		return
	}

	h.clearCookies(w, r, jwtx.KindTwoFactorPending)
	h.writeTokenSet(w, set)
}

// HandleLogout handles POST /v1/auth/logout
//
//	@Summary		Log out
//	@Description	Revokes the caller's session until its refresh token would expire and clears the token cookies.
//	@Tags			Session
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Router			/v1/auth/logout [post]
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := authn.IdentityFromContext(r.Context())
	if err := h.Sessions.Logout(r.Context(), id.SessionID); err != nil {
		writeError(w, r, err)
		return
	}

	for _, kind := range jwtx.Kinds() {
		httpx.ClearTokenCookie(w, h.Cookies, kind)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe handles GET /v1/auth/me
//
//	@Summary		Describe the caller
//	@Description	Returns the identity carried by the ACCESS token. A browser whose ACCESS cookie expired but whose REFRESH cookie is valid gets a new ACCESS cookie.
//	@Tags			Session
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.MeResponse
//	@Failure		401	{object}	authsdk.ErrorResponse
//	@Router			/v1/auth/me [get]
func (h *SessionHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := authn.IdentityFromContext(r.Context())
	httpx.WriteJSON(w, http.StatusOK, authsdk.MeResponse{
		Subject:   id.Subject,
		Username:  id.Username,
		Roles:     id.Roles,
		SessionID: id.SessionID,
		ExpiresAt: id.ExpiresAt,
	})
}

// RenewingAuthn authenticates like httpx.AuthnMiddleware but, when the
// ACCESS credential fails and a REFRESH cookie is present, mints a new ACCESS
// token from it, sets the cookie and proceeds.
func (h *SessionHandler) RenewingAuthn() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			src := authn.FirstOf(authn.HeaderSource(r.Header), authn.CookieSource(r, h.Cookies.Names))

			id, err := h.Access.Authenticate(ctx, src)
			if err == nil {
				next.ServeHTTP(w, r.WithContext(authn.WithIdentity(ctx, id)))
				return
			}
			h.clearCookies(w, r, jwtx.KindAccess)

			refresh, ok := authn.CookieSource(r, h.Cookies.Names).Credential(jwtx.KindRefresh)
			if !ok {
				httpx.WriteUnauthorized(w)
				return
			}

			set, err := h.Sessions.Refresh(ctx, refresh)
			if err != nil {
				slogx.FromContext(ctx).Info("refresh cookie rejected", "error_kind", jwtx.KindOf(err))
				h.clearCookies(w, r, jwtx.KindRefresh)
				httpx.WriteUnauthorized(w)
				return
			}

			access, _ := set.Get(jwtx.KindAccess)
			id, err = h.Access.Verify(ctx, access.Raw)
			if err != nil {
				httpx.WriteUnauthorized(w)
				return
			}

			httpx.SetTokenCookie(w, h.Cookies, access)
			slogx.FromContext(ctx).Debug("access cookie renewed", "sid", id.SessionID)
			next.ServeHTTP(w, r.WithContext(authn.WithIdentity(ctx, id)))
		})
	}
}
