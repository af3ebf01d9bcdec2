// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package platform

import (
	"net/http"
	"regexp"
	"strings"
)

// Names used by the page script and the web manifest to carry platform
// signals to the server.
const (
	QueryMode           = "mode"
	QueryReferrer       = "referrer"
	ModeStandalone      = "standalone"
	CookieDisplayMode   = "display_mode"
	CookieIOSStandalone = "ios_standalone"
	HeaderDisplayMode   = "X-Display-Mode"
	HeaderIOSStandalone = "X-Ios-Standalone"
)

var (
	iosUA     = regexp.MustCompile(`iPad|iPhone|iPod`)
	androidUA = regexp.MustCompile(`(?i)android`)
)

// SignalsFromRequest derives platform signals from an incoming page or API
// request. The manifest start_url carries ?mode=standalone, and the page
// script mirrors matchMedia and navigator.standalone into cookies.
func SignalsFromRequest(r *http.Request) Signals {
	q := r.URL.Query()

	displayMode := strings.EqualFold(q.Get(QueryMode), ModeStandalone) ||
		strings.EqualFold(r.Header.Get(HeaderDisplayMode), ModeStandalone) ||
		strings.EqualFold(cookieValue(r, CookieDisplayMode), ModeStandalone)

	iosFlag := truthy(r.Header.Get(HeaderIOSStandalone)) ||
		truthy(cookieValue(r, CookieIOSStandalone))

	referrer := q.Get(QueryReferrer)
	if referrer == "" {
		referrer = r.Referer()
	}

	return Signals{
		DisplayModeStandalone: displayMode,
		NavigatorStandalone:   iosFlag,
		Referrer:              referrer,
	}
}

// DetectOS classifies a User-Agent string. IE11 on Windows Phone spoofs the
// iPhone token, so user agents announcing MSIE/Trident are not treated as iOS.
func DetectOS(userAgent string) OS {
	switch {
	case iosUA.MatchString(userAgent) && !strings.Contains(userAgent, "Trident") && !strings.Contains(userAgent, "MSIE"):
		return OSiOS
	case androidUA.MatchString(userAgent):
		return OSAndroid
	default:
		return OSOther
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
