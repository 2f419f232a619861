package domain

// MFAEnrollResponse carries a freshly generated TOTP secret. TOTP is not
// active until the first code is confirmed.
type MFAEnrollResponse struct {
	Secret  string `json:"secret"`  // Base32 encoded secret for TOTP
	URL     string `json:"url"`     // otpauth:// URL for QR code generation
	Issuer  string `json:"issuer"`  // Issuer name shown by authenticator apps
	Account string `json:"account"` // Account name shown by authenticator apps
}
