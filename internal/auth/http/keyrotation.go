package http

import (
	"net/http"

	"github.com/retrade/authmesh/internal/auth/service"
	"github.com/retrade/authmesh/pkg/authsdk"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/slogx"
)

// KeyRotationHandler handles ACCESS key rotation in ephemeral and persistent
// modes. Both endpoints require the ADMIN role.
type KeyRotationHandler struct {
	KeyRotationService *service.KeyRotationService
}

// HandleRotate handles POST /v1/keys/rotate
//
//	@Summary		Rotate signing keys
//	@Description	Generates a new ACCESS signing key and makes it current. Previous keys keep verifying through the grace period.
//	@Tags			Keys
//	@Produce		json
//	@Success		200	{object}	authsdk.RotateKeyResponse
//	@Failure		401	{object}	authsdk.ErrorResponse	"Unauthorized"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Forbidden - requires ADMIN"
//	@Failure		501	{object}	authsdk.ErrorResponse	"Shared-secret keys"
//	@Security		BearerAuth
//	@Router			/v1/keys/rotate [post]
func (h *KeyRotationHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	resp, err := h.KeyRotationService.RotateKey(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	slogx.FromContext(r.Context()).Info("signing key rotated",
		"kid", resp.NewKey.Kid, "retired", len(resp.RetiredKeys))

	httpx.WriteJSON(w, http.StatusOK, authsdk.RotateKeyResponse{
		NewKey:      sdkKey(resp.NewKey),
		RetiredKeys: sdkKeys(resp.RetiredKeys),
	})
}

// HandleListKeys handles GET /v1/keys
//
//	@Summary		List signing keys
//	@Description	Lists the ACCESS signing keys that still verify.
//	@Tags			Keys
//	@Produce		json
//	@Success		200	{array}		authsdk.SigningKeyInfo
//	@Failure		401	{object}	authsdk.ErrorResponse	"Unauthorized"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Forbidden - requires ADMIN"
//	@Security		BearerAuth
//	@Router			/v1/keys [get]
func (h *KeyRotationHandler) HandleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.KeyRotationService.ListSigningKeys(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sdkKeys(keys))
}

func sdkKey(k service.KeyInfo) authsdk.SigningKeyInfo {
	return authsdk.SigningKeyInfo{
		Kid:       k.Kid,
		Scope:     k.Scope,
		Algorithm: k.Algorithm,
		Current:   k.Current,
		CreatedAt: k.CreatedAt,
		RetiredAt: k.RetiredAt,
		ExpiresAt: k.ExpiresAt,
	}
}

func sdkKeys(keys []service.KeyInfo) []authsdk.SigningKeyInfo {
	out := make([]authsdk.SigningKeyInfo, len(keys))
	for i, k := range keys {
		out[i] = sdkKey(k)
	}
	return out
}
