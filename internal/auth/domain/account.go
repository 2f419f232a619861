package domain

import "time"

type Account struct {
	ID           string
	Username     string
	PasswordHash string     // argon2 encoded
	Roles        []string   // e.g. SELLER, BUYER, ADMIN
	MFAEnabled   *time.Time // Timestamp when TOTP was enabled (nullable)
	MFASecret    *string    // TOTP secret (nullable, base32 encoded)
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TwoFactorEnabled reports whether login needs a second factor.
func (a *Account) TwoFactorEnabled() bool {
	return a.MFAEnabled != nil && a.MFASecret != nil
}
