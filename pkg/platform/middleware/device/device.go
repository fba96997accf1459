package device

import (
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"docucred/internal/platform/privacy"
	"docucred/pkg/requestcontext"
)

// Device parses the User-Agent once per request and stores a display name
// ("Chrome on Linux") plus the masked client network in the context for
// request logging.
func Device(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientNetwork(r.Context(), privacy.ClientNetwork(r.RemoteAddr))
		if ua := r.UserAgent(); ua != "" {
			ctx = requestcontext.WithClientDevice(ctx, ParseUserAgent(ua))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ParseUserAgent extracts a human-readable device display name from a User-Agent string.
// Mobile clients report the platform ("Safari on iPhone") instead of the OS.
func ParseUserAgent(userAgentString string) string {
	if userAgentString == "" {
		return "Unknown Device"
	}

	ua := useragent.New(userAgentString)
	if ua.Bot() {
		name, _ := ua.Browser()
		if name == "" {
			return "Bot"
		}
		return name
	}

	browser, _ := ua.Browser()
	os := ua.OS()

	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			return strings.TrimSpace(browser + " on " + platform)
		}
	}

	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}

	return strings.TrimSpace(browser + " on " + os)
}
