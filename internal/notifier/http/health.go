package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/retrade/authmesh/pkg/authsdk"
	"github.com/retrade/authmesh/pkg/httpx"
	"github.com/retrade/authmesh/pkg/jwtx"
)

const probeTimeout = 2 * time.Second

var errNoAccessKeys = errors.New("no ACCESS keys loaded")

func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler is ready once the cache answers, verification keys are
// loaded and, when configured, the shared denylist answers.
func ReadyzHandler(startTime time.Time, version string, cache Pinger, keys *jwtx.KeySet, revocation Pinger) http.HandlerFunc {
	probes := []httpx.Probe{
		httpx.PingProbe("database", cache),
		{Name: "signer", Check: func(context.Context) error {
			if keys == nil || !keys.IsReady() {
				return errNoAccessKeys
			}
			return nil
		}},
	}
	if revocation != nil {
		probes = append(probes, httpx.PingProbe("revocation", revocation))
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
