package domain

import "github.com/retrade/authmesh/pkg/jwtx"

// SigningKey is a persisted signing key: the private key PEM sealed under
// the master key, its scope, and its retirement window. It shares the jwtx
// record type so the store backs a persistent KeyManager directly.
type SigningKey = jwtx.SigningKeyRecord
