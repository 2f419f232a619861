package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/retrade/authmesh/pkg/authsdk"
	"github.com/retrade/authmesh/pkg/jwtx"
)

var errEmptyJWKS = errors.New("auth service published no keys")

// JWKSRefresher keeps a KeySet in step with the auth service JWKS so rotated
// ACCESS keys verify here without a restart. A failed fetch keeps the last
// good keys.
type JWKSRefresher struct {
	Client   *authsdk.SDKClient
	Keys     *jwtx.KeySet
	Logger   *slog.Logger
	Interval time.Duration

	etag   string
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewJWKSRefresher(client *authsdk.SDKClient, keys *jwtx.KeySet, logger *slog.Logger, interval time.Duration) *JWKSRefresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &JWKSRefresher{
		Client:   client,
		Keys:     keys,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Refresh fetches the JWKS once and replaces the KeySet. An unchanged set,
// by ETag, leaves the KeySet alone. Refresh is not safe for concurrent use.
func (r *JWKSRefresher) Refresh(ctx context.Context) error {
	jwks, etag, err := r.Client.GetJWKSIfChanged(ctx, r.etag)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	if jwks == nil {
		return nil
	}
	if len(jwks.Keys) == 0 {
		return errEmptyJWKS
	}
	if err := r.Keys.ResetFromJWKS(*jwks); err != nil {
		return fmt.Errorf("load jwks: %w", err)
	}
	r.etag = etag
	return nil
}

func (r *JWKSRefresher) Start() {
	go r.run()
	r.Logger.Info("jwks refresher started", "interval", r.Interval)
}

func (r *JWKSRefresher) Stop() {
	close(r.stopCh)
	<-r.doneCh
	r.Logger.Info("jwks refresher stopped")
}

func (r *JWKSRefresher) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), r.Interval)
			if err := r.Refresh(ctx); err != nil {
				r.Logger.Warn("jwks refresh failed, keeping previous keys", "error", err)
			} else {
				r.Logger.Debug("jwks refreshed", "keys", len(r.Keys.KIDs()))
			}
			cancel()
		case <-r.stopCh:
			return
		}
	}
}
