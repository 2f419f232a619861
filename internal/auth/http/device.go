package http

import (
	"net/http"

	"github.com/retrade/authmesh/internal/auth/domain"
)

// Device headers a client may send at login.
const (
	HeaderDeviceFingerprint = "X-Device-Fingerprint"
	HeaderDeviceName        = "X-Device-Name"
	HeaderIPAddress         = "X-IP-Address"
	HeaderLocation          = "X-Location"
)

func deviceFromRequest(r *http.Request) domain.DeviceInfo {
	return domain.DeviceInfo{
		Fingerprint: r.Header.Get(HeaderDeviceFingerprint),
		Name:        r.Header.Get(HeaderDeviceName),
		IPAddress:   r.Header.Get(HeaderIPAddress),
		Location:    r.Header.Get(HeaderLocation),
		UserAgent:   r.UserAgent(),
	}.Normalize()
}
