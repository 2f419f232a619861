// Package auth registers the OpenAPI document of the auth service with swag.
// Regenerate with: swag init -g internal/auth/http/router.go -o api/auth
package auth

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {"name": "Retrade Platform Team"},
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/accounts": {"post": {"tags": ["Accounts"], "summary": "Register an account",
            "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.RegisterRequest"}}],
            "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/authsdk.AccountResponse"}},
                "400": {"description": "Invalid username or weak password", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                "409": {"description": "Username taken", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/v1/accounts/me/username": {"put": {"security": [{"BearerAuth": []}], "tags": ["Accounts"], "summary": "Rename the caller",
            "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.RenameRequest"}}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.AccountResponse"}},
                "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                "409": {"description": "Username taken", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/v1/auth/login": {"post": {"tags": ["Session"], "summary": "Log in",
            "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.LoginRequest"}}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.TokenSetResponse"}},
                "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                "429": {"description": "Rate limited", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/v1/auth/refresh": {"post": {"tags": ["Session"], "summary": "Refresh the access token",
            "parameters": [{"in": "body", "name": "request", "schema": {"$ref": "#/definitions/authsdk.RefreshRequest"}}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.TokenSetResponse"}},
                "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/v1/auth/2fa/complete": {"post": {"tags": ["Session"], "summary": "Complete a two-factor login",
            "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.TwoFactorCompleteRequest"}}],
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.TokenSetResponse"}},
                "401": {"description": "Invalid pending token or code", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/v1/auth/logout": {"post": {"security": [{"BearerAuth": []}], "tags": ["Session"], "summary": "Log out",
            "responses": {"204": {"description": "No Content"}, "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/v1/auth/me": {"get": {"security": [{"BearerAuth": []}], "tags": ["Session"], "summary": "Describe the caller",
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.MeResponse"}},
                "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/v1/auth/password": {"post": {"security": [{"BearerAuth": []}], "tags": ["Accounts"], "summary": "Change password",
            "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.ChangePasswordRequest"}}],
            "responses": {"204": {"description": "No Content"}, "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/v1/mfa/totp/enroll": {"post": {"security": [{"BearerAuth": []}], "tags": ["MFA"], "summary": "Enroll in TOTP MFA",
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.TOTPEnrollResponse"}},
                "409": {"description": "MFA already enabled", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/v1/mfa/totp/enable": {"post": {"security": [{"BearerAuth": []}], "tags": ["MFA"], "summary": "Confirm TOTP and enable MFA",
            "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.TOTPCodeRequest"}}],
            "responses": {"204": {"description": "No Content"}, "401": {"description": "Invalid code", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/v1/mfa/totp": {"delete": {"security": [{"BearerAuth": []}], "tags": ["MFA"], "summary": "Disable TOTP MFA",
            "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/authsdk.TOTPCodeRequest"}}],
            "responses": {"204": {"description": "No Content"}, "401": {"description": "Invalid code", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/v1/keys/rotate": {"post": {"security": [{"BearerAuth": []}], "tags": ["Keys"], "summary": "Rotate signing keys",
            "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/authsdk.RotateKeyResponse"}},
                "403": {"description": "Forbidden - requires ADMIN", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}},
                "501": {"description": "Shared-secret keys", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/v1/keys": {"get": {"security": [{"BearerAuth": []}], "tags": ["Keys"], "summary": "List signing keys",
            "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/authsdk.SigningKeyInfo"}}},
                "403": {"description": "Forbidden - requires ADMIN", "schema": {"$ref": "#/definitions/authsdk.ErrorResponse"}}}}},
        "/.well-known/jwks.json": {"get": {"tags": ["well-known"], "summary": "Get JWKS",
            "responses": {"200": {"description": "The JSON Web Key Set", "schema": {"$ref": "#/definitions/authsdk.JWKSResponse"}}}}},
        "/livez": {"get": {"tags": ["Health"], "summary": "Health Check Endpoint",
            "responses": {"200": {"description": "status, uptime, version", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}}}},
        "/readyz": {"get": {"tags": ["Health"], "summary": "Readiness Check Endpoint",
            "responses": {"200": {"description": "ready", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}},
                "503": {"description": "not ready", "schema": {"$ref": "#/definitions/authsdk.HealthResponse"}}}}}
    },
    "definitions": {
        "authsdk.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "error_description": {"type": "string"}}},
        "authsdk.RegisterRequest": {"type": "object", "properties": {"username": {"type": "string"}, "password": {"type": "string"}}},
        "authsdk.LoginRequest": {"type": "object", "properties": {"username": {"type": "string"}, "password": {"type": "string"}}},
        "authsdk.RenameRequest": {"type": "object", "properties": {"username": {"type": "string"}}},
        "authsdk.ChangePasswordRequest": {"type": "object", "properties": {"current_password": {"type": "string"}, "new_password": {"type": "string"}}},
        "authsdk.RefreshRequest": {"type": "object", "properties": {"refresh_token": {"type": "string"}}},
        "authsdk.TwoFactorCompleteRequest": {"type": "object", "properties": {"code": {"type": "string"}}},
        "authsdk.TOTPCodeRequest": {"type": "object", "properties": {"code": {"type": "string"}}},
        "authsdk.AccountResponse": {"type": "object", "properties": {"id": {"type": "string"}, "username": {"type": "string"},
            "roles": {"type": "array", "items": {"type": "string"}}, "two_factor_enabled": {"type": "boolean"}, "created_at": {"type": "string"}}},
        "authsdk.TokenSetResponse": {"type": "object", "properties": {"tokens": {"type": "object", "additionalProperties": {"type": "string"}},
            "roles": {"type": "array", "items": {"type": "string"}}, "two_factor_required": {"type": "boolean"}}},
        "authsdk.MeResponse": {"type": "object", "properties": {"sub": {"type": "string"}, "username": {"type": "string"},
            "roles": {"type": "array", "items": {"type": "string"}}, "sid": {"type": "string"}, "expires_at": {"type": "string"}}},
        "authsdk.TOTPEnrollResponse": {"type": "object", "properties": {"secret": {"type": "string"}, "url": {"type": "string"},
            "issuer": {"type": "string"}, "account": {"type": "string"}}},
        "authsdk.SigningKeyInfo": {"type": "object", "properties": {"kid": {"type": "string"}, "scope": {"type": "string"},
            "algorithm": {"type": "string"}, "current": {"type": "boolean"}, "created_at": {"type": "string"},
            "retired_at": {"type": "string"}, "expires_at": {"type": "string"}}},
        "authsdk.RotateKeyResponse": {"type": "object", "properties": {"new_key": {"$ref": "#/definitions/authsdk.SigningKeyInfo"},
            "retired_keys": {"type": "array", "items": {"$ref": "#/definitions/authsdk.SigningKeyInfo"}}}},
        "authsdk.JWKSResponse": {"type": "object", "properties": {"keys": {"type": "array", "items": {"type": "object"}}}},
        "authsdk.HealthResponse": {"type": "object", "properties": {"status": {"type": "string"}, "uptime": {"type": "string"},
            "version": {"type": "string"}, "checks": {"type": "object", "properties": {"database": {"type": "string"},
            "signer": {"type": "string"}, "revocation": {"type": "string"}}}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"description": "JWT access token. Format: \"Bearer {token}\".", "type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Retrade Authentication Service API",
	Description:      "Session tokens for the Retrade marketplace. ACCESS tokens verify offline against the JWKS endpoint or a shared secret.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
