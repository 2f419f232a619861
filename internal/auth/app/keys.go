package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/retrade/authmesh/internal/auth/store"
	"github.com/retrade/authmesh/pkg/cryptox"
	"github.com/retrade/authmesh/pkg/jwtx"
)

// InitKeys creates one KeyManager per token kind, so a key of one kind never
// verifies a token of another.
//
// Key modes:
//   - "static": HS256 shared secrets from the environment. Dependent
//     services verify ACCESS tokens with the same secret.
//   - "ephemeral": asymmetric keys generated on startup and kept in memory.
//     All existing tokens become invalid when the service restarts.
//   - "persistent": asymmetric keys stored encrypted in the database.
//     Tokens survive restarts and ACCESS keys can be rotated.
func InitKeys(ctx context.Context, cfg Config, db store.Store, logger *slog.Logger) (map[jwtx.Kind]*jwtx.KeyManager, error) {
	if cfg.MasterKeyPath != "" {
		if err := cryptox.LoadMasterKey(cfg.MasterKeyPath); err != nil {
			return nil, fmt.Errorf("load master key: %w", err)
		}
		logger.Info("master key loaded", "path", cfg.MasterKeyPath)
	}

	managers := make(map[jwtx.Kind]*jwtx.KeyManager, len(jwtx.Kinds()))
	for _, kind := range jwtx.Kinds() {
		km, err := initKind(ctx, cfg, db, kind)
		if err != nil {
			return nil, fmt.Errorf("init %s keys: %w", kind, err)
		}
		managers[kind] = km

		logger.Info("signing keys ready",
			"kind", kind,
			"mode", cfg.KeyMode,
			"algorithm", km.Algorithm(),
			"keys", len(km.KeySet.KIDs()),
		)
	}

	if cfg.KeyMode == KeyModeEphemeral {
		logger.Warn("ephemeral keys: tokens issued before this start no longer verify")
	}
	return managers, nil
}

func initKind(ctx context.Context, cfg Config, db store.Store, kind jwtx.Kind) (*jwtx.KeyManager, error) {
	switch cfg.KeyMode {
	case KeyModeStatic:
		return jwtx.NewStaticKeyManager(cfg.secrets[kind]...)
	case KeyModePersistent:
		return jwtx.NewPersistentKeyManager(ctx, jwtx.PersistentKeyManagerOptions{
			Store:       db.SigningKeys(),
			Scope:       kind,
			Algorithm:   cfg.Algorithm,
			RSABits:     cfg.RSABits,
			GracePeriod: cfg.KeyGracePeriod,
		})
	default:
		return jwtx.NewEphemeralKeyManager(jwtx.KeyManagerOptions{
			Algorithm: cfg.Algorithm,
			RSABits:   cfg.RSABits,
		})
	}
}
