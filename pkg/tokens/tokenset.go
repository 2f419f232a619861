package tokens

import (
	"encoding/json"
	"fmt"

	"github.com/retrade/authmesh/pkg/jwtx"
)

// TokenSet is what a successful login, refresh or 2FA completion returns.
// When TwoFactorRequired is set it holds only a TWO_FACTOR_PENDING token.
type TokenSet struct {
	Tokens            map[jwtx.Kind]jwtx.Token
	Roles             []string
	TwoFactorRequired bool

	// Subject and SessionID identify the account and session every token
	// of the set carries. They are not part of the wire form.
	Subject   string
	SessionID string
}

// Get returns the token of kind, if present.
func (ts TokenSet) Get(kind jwtx.Kind) (jwtx.Token, bool) {
	t, ok := ts.Tokens[kind]
	return t, ok
}

// Raw returns the serialized token of kind or "".
func (ts TokenSet) Raw(kind jwtx.Kind) string {
	return ts.Tokens[kind].Raw
}

type tokenSetJSON struct {
	Tokens            map[jwtx.Kind]string `json:"tokens"`
	Roles             []string             `json:"roles"`
	TwoFactorRequired bool                 `json:"two_factor_required"`
}

func (ts TokenSet) MarshalJSON() ([]byte, error) {
	out := tokenSetJSON{
		Tokens:            make(map[jwtx.Kind]string, len(ts.Tokens)),
		Roles:             ts.Roles,
		TwoFactorRequired: ts.TwoFactorRequired,
	}
	if out.Roles == nil {
		out.Roles = []string{}
	}
	for k, t := range ts.Tokens {
		out.Tokens[k] = t.Raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the raw tokens. Only Raw and Kind are populated;
// clients that need the claims decode the token themselves.
func (ts *TokenSet) UnmarshalJSON(b []byte) error {
	var in tokenSetJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	ts.Tokens = make(map[jwtx.Kind]jwtx.Token, len(in.Tokens))
	for k, raw := range in.Tokens {
		if !k.Valid() {
			return fmt.Errorf("tokens: unknown token kind %q", k)
		}
		ts.Tokens[k] = jwtx.Token{Raw: raw, Kind: k}
	}
	ts.Roles = in.Roles
	ts.TwoFactorRequired = in.TwoFactorRequired
	return nil
}
