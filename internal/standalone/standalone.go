// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package standalone decides whether a page was launched as an installed
// home-screen app rather than in a browser tab.
package standalone

import (
	"strings"

	"github.com/ManuGH/freesession/internal/platform"
)

// AndroidAppReferrerPrefix marks launches from a Trusted Web Activity wrapper.
const AndroidAppReferrerPrefix = "android-app://"

// Detect reports whether any installed-app signal holds. The result is final
// for the mount: display mode does not change while a page is running.
func Detect(s platform.Signals) bool {
	return s.DisplayModeStandalone ||
		s.NavigatorStandalone ||
		strings.Contains(s.Referrer, AndroidAppReferrerPrefix)
}
