package authsdk

import (
	"context"
	"fmt"
	"net/http"
)

const jwksPath = "/.well-known/jwks.json"

// GetJWKS retrieves the JSON Web Key Set that verifies ACCESS tokens.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	jwks, _, err := c.GetJWKSIfChanged(ctx, "")
	return jwks, err
}

// GetJWKSIfChanged fetches the key set unless it still matches etag. An
// unchanged set yields a nil JWKSResponse and the same etag.
func (c *SDKClient) GetJWKSIfChanged(ctx context.Context, etag string) (*JWKSResponse, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(jwksPath), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range c.Headers {
		req.Header.Set(key, value)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to send request: %w", err)
	}
	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		return nil, etag, nil
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, "", err
	}
	return &jwks, resp.Header.Get("ETag"), nil
}

// GetLiveness reports whether the process is up.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/livez")
}

// GetReadiness reports whether the service can take traffic. A 503 comes
// back as an *httpx.APIError.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.health(ctx, "/readyz")
}

func (c *SDKClient) health(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}
	return &health, nil
}
