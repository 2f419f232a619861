package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/retrade/authmesh/internal/auth/store"
	"github.com/retrade/authmesh/pkg/authsdk"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/jwtx"
)

const probeTimeout = 2 * time.Second

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Always 200 while the process serves HTTP
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get]
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Reports the database and the signing keys of every token kind, plus the shared denylist when one is configured.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get]
func ReadyzHandler(startTime time.Time, version string, st store.Store, keys map[jwtx.Kind]*jwtx.KeySet, denylist interface{ Ping(context.Context) error }) http.HandlerFunc {
	signer := httpx.Probe{Name: "signer", Check: func(context.Context) error {
		for _, kind := range jwtx.Kinds() {
			if ks := keys[kind]; ks == nil || !ks.IsReady() {
				return fmt.Errorf("no %s keys loaded", kind)
			}
		}
		return nil
	}}

	probes := []httpx.Probe{httpx.PingProbe("database", st), signer}
	if denylist != nil {
		probes = append(probes, httpx.PingProbe("revocation", denylist))
	}

	return func(w http.ResponseWriter, r *http.Request) {
		results, ready := httpx.RunProbes(r.Context(), probeTimeout, probes...)

		resp := authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks: &authsdk.HealthChecks{
				Database:   results["database"],
				Signer:     results["signer"],
				Revocation: results["revocation"],
			},
		}
		code := http.StatusOK
		if !ready {
			resp.Status, code = "degraded", http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, resp)
	}
}
