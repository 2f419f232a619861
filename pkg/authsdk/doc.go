/*
Package authsdk is a client for the authmesh authentication service.

# SDKClient vs Session

  - SDKClient: unauthenticated operations (register, login, refresh, JWKS, health)
  - Session: operations on behalf of a logged-in account, with automatic
    ACCESS token refresh

A typical login:

	client := authsdk.NewSDKClient("https://auth.example.com")

	session, pending, err := client.Login(ctx, "alice", "password")
	if errors.Is(err, authsdk.ErrTwoFactorRequired) {
		session, err = client.CompleteTwoFactor(ctx, pending, totpCode)
	}

	me, err := session.Me(ctx)

# Automatic Token Refresh

Before each request the Session reads exp from its ACCESS token. Within 30
seconds of expiry it exchanges the REFRESH token for a new ACCESS token. The
REFRESH token itself is reused until it expires or its session is revoked.

# Error Handling

Error replies are returned as *httpx.APIError carrying the status code and
the stable error code. Every token failure is the same 401 with the code
"unauthorized".

	var apiErr *httpx.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		// log in again
	}
*/
package authsdk
