package domain

import "time"

// Unknown is stored for any device attribute the client did not send.
const Unknown = "unknown"

// LoginSession records one successful login. Its ID is the sid carried by
// every token of the session.
type LoginSession struct {
	ID        string
	AccountID string
	DeviceInfo
	CreatedAt time.Time
}

// DeviceInfo is what a client tells us about itself at login.
type DeviceInfo struct {
	Fingerprint string
	Name        string
	IPAddress   string
	Location    string
	UserAgent   string
}

// Normalize replaces missing attributes with Unknown.
func (d DeviceInfo) Normalize() DeviceInfo {
	for _, f := range []*string{&d.Fingerprint, &d.Name, &d.IPAddress, &d.Location, &d.UserAgent} {
		if *f == "" {
			*f = Unknown
		}
	}
	return d
}
