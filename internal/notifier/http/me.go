package http

import (
	"net/http"
	"time"

	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/identsync"
	"github.com/retrade/authmesh/pkg/slogx"
)

// MeResponse is the caller as the notifier sees it. Username comes from the
// local cache and may lag the token until the next sync.
type MeResponse struct {
	Subject       string    `json:"sub"`
	Username      string    `json:"username"`
	TokenUsername string    `json:"token_username"`
	Roles         []string  `json:"roles"`
	SessionID     string    `json:"sid"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type MeHandler struct {
	Cache IdentityCache
}

// HandleMe returns the caller and seeds the identity cache on first sight.
func (h *MeHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := authn.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteUnauthorized(w)
		return
	}

	cached, err := h.Cache.Upsert(r.Context(), identsync.AccountIdentity{
		AccountID: id.Subject,
		Username:  id.Username,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		slogx.FromContext(r.Context()).Error("seed identity cache", "account_id", id.Subject, "error", err)
		httpx.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, MeResponse{
		Subject:       id.Subject,
		Username:      cached.Username,
		TokenUsername: id.Username,
		Roles:         id.Roles,
		SessionID:     id.SessionID,
		ExpiresAt:     id.ExpiresAt,
	})
}
