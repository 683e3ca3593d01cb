package helpers

import (
	"net/http"
	"strings"
)

// UnknownIP is reported when no forwarding header identifies the client.
const UnknownIP = "unknown"

// ClientIP returns the address forwarded to the verification provider:
// the first X-Forwarded-For entry, else X-Real-IP, else "unknown".
//
// Both headers are client-controlled unless the proxy in front strips them.
// The value is only a hint for the provider and is never used for access
// decisions.
func ClientIP(r *http.Request) string {
	// Format: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	return UnknownIP
}
