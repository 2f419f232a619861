package http

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/retrade/authmesh/pkg/authsdk"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/jwtx"
)

// JWKSHandler publishes the public ACCESS keys. Shared-secret keys never
// appear here, so a static deployment serves an empty set.
//
// The reply carries a strong ETag over the encoded set. A matching
// If-None-Match gets 304 so refreshers polling for rotations stay cheap.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set that verifies ACCESS tokens. Retired keys stay listed through their grace period.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Success		304	"The set is unchanged since the given ETag"
//	@Router			/.well-known/jwks.json [get]
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := json.Marshal(authsdk.JWKSResponse(keys.PublicJWKS()))
		if err != nil {
			httpx.ErrServerError.WriteError(w)
			return
		}

		sum := sha256.Sum256(body)
		etag := `"` + hex.EncodeToString(sum[:8]) + `"`

		w.Header().Set("Cache-Control", "public, max-age=60")
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
